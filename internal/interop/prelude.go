package interop

// bridgeJS installs globalThis.__bridge: the shape probe used to inspect
// evaluation results, the host-object factory used by injection, and the
// opaque table that keeps untranslatable values alive for the session.
// It is ES5 so the otto backend can run it. The two verbs are the array
// depth and length limits.
const bridgeJS = `
(function(g) {
	var hasOwn = Object.prototype.hasOwnProperty;
	var toStr = Object.prototype.toString;
	var isArray = Array.isArray;
	var defineProperty = Object.defineProperty;
	var getPrototypeOf = Object.getPrototypeOf;
	var stringify = JSON.stringify;
	var parse = JSON.parse;

	var hostGet = g.__bridge_host_get;
	var hostSet = g.__bridge_host_set;
	var hostCall = g.__bridge_host_call;
	delete g.__bridge_host_get;
	delete g.__bridge_host_set;
	delete g.__bridge_host_call;

	var REF = '__bridge_ref';
	var B = {maxDepth: %d, maxLength: %d, opaque: {}, nextOpaque: 1, refs: {}};

	function isRef(v) {
		return v !== null && (typeof v === 'object' || typeof v === 'function') && hasOwn.call(v, REF);
	}

	function isArrayLike(v) {
		if (isArray(v)) return true;
		if (typeof ArrayBuffer === 'undefined' || typeof ArrayBuffer.isView !== 'function') return false;
		return ArrayBuffer.isView(v) && !(typeof DataView !== 'undefined' && v instanceof DataView);
	}

	function onStack(stack, v) {
		for (var i = 0; i < stack.length; i++) {
			if (stack[i] === v) return true;
		}
		return false;
	}

	function repr(v) {
		try { return String(v); } catch (e) {}
		try { return toStr.call(v); } catch (e) {}
		return '';
	}

	function typeName(v) {
		var t = typeof v;
		if (t !== 'object') return t;
		try {
			var p = getPrototypeOf(v);
			if (p && typeof p.constructor === 'function' && p.constructor.name) return p.constructor.name;
		} catch (e) {}
		return 'Object';
	}

	function keep(v) {
		var id = B.nextOpaque++;
		B.opaque[id] = v;
		return id;
	}

	function opaque(v) {
		return {t: 'o', id: keep(v), c: typeName(v), r: repr(v)};
	}

	function describe(v, depth, stack) {
		if (v === undefined) return {t: 'u'};
		if (v === null) return {t: 'z'};
		var t = typeof v;
		if (t === 'boolean') return {t: 'b', v: v ? 'true' : 'false'};
		if (t === 'number') return {t: 'n', v: (v === 0 && 1 / v < 0) ? '-0' : String(v)};
		if (t === 'bigint') return {t: 'g', v: v.toString()};
		if (t === 'string') return {t: 's', v: v};
		if (isRef(v)) return {t: 'h', id: v[REF], r: repr(v)};
		if (isArrayLike(v) && depth < B.maxDepth && v.length <= B.maxLength && !onStack(stack, v)) {
			stack[stack.length] = v;
			var e = [];
			for (var i = 0; i < v.length; i++) e[i] = describe(v[i], depth + 1, stack);
			stack.length = stack.length - 1;
			return {t: 'a', e: e, r: repr(v)};
		}
		return opaque(v);
	}

	function toArg(v) {
		if (v === undefined) return {};
		if (isRef(v)) return {h: v[REF]};
		var t = typeof v;
		if (t === 'bigint') return {j: v.toString()};
		if (t === 'function' || t === 'symbol') return {};
		if (isArray(v)) {
			var l = [];
			for (var i = 0; i < v.length; i++) l[i] = toArg(v[i]);
			return {l: l};
		}
		return {v: v};
	}

	function fromEnv(env) {
		if (env.x !== undefined) throw new Error(env.x);
		if (env.h !== undefined) return hostRef(env.h);
		if (env.l !== undefined) {
			var out = [];
			for (var i = 0; i < env.l.length; i++) out[i] = fromEnv(env.l[i]);
			return out;
		}
		if (env.n !== undefined) return Number(env.n);
		if (env.j !== undefined) return typeof BigInt === 'function' ? BigInt(env.j) : Number(env.j);
		if (hasOwn.call(env, 'v')) return env.v;
		return undefined;
	}

	function invoke(id, name, args) {
		var enc = [];
		for (var i = 0; i < args.length; i++) enc[i] = toArg(args[i]);
		return fromEnv(parse(hostCall(id, name, stringify(enc))));
	}

	function defineMember(obj, id, m) {
		var desc;
		if (m.k === 'm') {
			desc = {enumerable: true, value: function() { return invoke(id, m.n, arguments); }};
		} else {
			desc = {
				enumerable: true,
				get: function() { return fromEnv(parse(hostGet(id, m.n))); },
				set: function(v) { fromEnv(parse(hostSet(id, m.n, stringify(toArg(v))))); }
			};
		}
		for (var j = 0; j < m.j.length; j++) {
			if (m.j[j] === REF || hasOwn.call(obj, m.j[j])) continue;
			defineProperty(obj, m.j[j], desc);
		}
	}

	function hostRef(spec) {
		if (hasOwn.call(B.refs, spec.id)) return B.refs[spec.id];
		var obj;
		if (spec.c) {
			obj = function() { return invoke(spec.id, '', arguments); };
		} else {
			obj = {};
		}
		defineProperty(obj, REF, {value: spec.id});
		var members = spec.m || [];
		for (var i = 0; i < members.length; i++) defineMember(obj, spec.id, members[i]);
		if (!hasOwn.call(obj, 'toString')) {
			defineProperty(obj, 'toString', {value: function() { return '[host ' + spec.t + ']'; }});
		}
		B.refs[spec.id] = obj;
		return obj;
	}

	B.describeSlot = function(slot) {
		var v = g[slot];
		try { delete g[slot]; } catch (e) {}
		var d;
		try {
			d = describe(v, 0, []);
		} catch (e) {
			d = opaque(v);
		}
		return stringify(d);
	};

	B.bind = function(kind) {
		var name = g.__bridge_tmp_name;
		var arg = g.__bridge_tmp_arg;
		delete g.__bridge_tmp_name;
		delete g.__bridge_tmp_arg;
		var v;
		if (kind === 'opaque') {
			if (!hasOwn.call(B.opaque, arg)) throw new Error('unknown opaque value ' + arg);
			v = B.opaque[arg];
		} else {
			v = fromEnv(parse(arg));
		}
		g[name] = v;
	};

	B.release = function(id) {
		delete B.opaque[id];
	};

	B.opaqueCount = function() {
		var n = 0;
		for (var k in B.opaque) {
			if (hasOwn.call(B.opaque, k)) n++;
		}
		return n;
	};

	defineProperty(g, '__bridge', {value: B});
})(this);
`
