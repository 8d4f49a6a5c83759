package jsbridge

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	N     int
	Label string
	hits  int
}

func (c *counter) Add(d int) int {
	c.N += d
	c.hits++
	return c.N
}

func (c *counter) Describe(prefix string) (string, error) {
	if prefix == "" {
		return "", errors.New("empty prefix")
	}
	return prefix + c.Label, nil
}

type item struct{ Name string }

type shelf struct{ items []*item }

func (s *shelf) First() *item  { return s.items[0] }
func (s *shelf) All() []*item  { return s.items }
func (s *shelf) Take(it *item) { s.items = append(s.items, it) }
func (s *shelf) Count() int    { return len(s.items) }
func (s *shelf) Names() []string {
	out := make([]string, len(s.items))
	for i, it := range s.items {
		out[i] = it.Name
	}
	return out
}

func TestInjectReturnsSameNative(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		s := newSession(t, EngineConfig{Engine: engine, Sink: quietSink()})
		c := &counter{}
		require.NoError(t, s.Inject("x", c))

		got, err := s.Evaluate("x")
		require.NoError(t, err)
		assert.Same(t, c, got)
	})
}

func TestInjectMethodsAndFields(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		s := newSession(t, EngineConfig{Engine: engine, Sink: quietSink()})
		c := &counter{Label: "box"}
		require.NoError(t, s.Inject("c", c))

		got, err := s.Evaluate("c.add(2); c.Add(3)")
		require.NoError(t, err)
		assert.Equal(t, int32(5), got)
		assert.Equal(t, 5, c.N)
		assert.Equal(t, 2, c.hits)

		got, err = s.Evaluate("c.n + ':' + c.label")
		require.NoError(t, err)
		assert.Equal(t, "5:box", got)

		_, err = s.Evaluate("c.label = 'crate'")
		require.NoError(t, err)
		assert.Equal(t, "crate", c.Label)

		got, err = s.Evaluate("c.describe('a ')")
		require.NoError(t, err)
		assert.Equal(t, "a crate", got)

		got, err = s.Evaluate("typeof c.hits")
		require.NoError(t, err)
		assert.Equal(t, "undefined", got)
	})
}

func TestInjectErrorsBecomeExceptions(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		s := newSession(t, EngineConfig{Engine: engine, Sink: quietSink()})
		require.NoError(t, s.Inject("c", &counter{}))

		got, err := s.Evaluate("try { c.describe('') } catch (e) { 'caught: ' + e.message }")
		require.NoError(t, err)
		assert.Equal(t, "caught: empty prefix", got)

		_, err = s.Evaluate("c.describe('')")
		var se *ScriptError
		require.True(t, errors.As(err, &se))
		assert.Contains(t, se.Message, "empty prefix")

		require.NoError(t, s.Inject("boom", func() int { panic("host exploded") }))
		_, err = s.Evaluate("boom()")
		require.True(t, errors.As(err, &se))
		assert.Contains(t, se.Message, "host exploded")
	})
}

func TestInjectFuncs(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		s := newSession(t, EngineConfig{Engine: engine, Sink: quietSink()})
		require.NoError(t, s.Inject("double", func(x int) int { return x * 2 }))
		require.NoError(t, s.Inject("sum", func(xs ...float64) float64 {
			total := 0.0
			for _, x := range xs {
				total += x
			}
			return total
		}))
		require.NoError(t, s.Inject("pair", func() (string, int) { return "p", 2 }))

		got, err := s.Evaluate("double(21)")
		require.NoError(t, err)
		assert.Equal(t, int32(42), got)

		got, err = s.Evaluate("sum(1, 2, 3.5)")
		require.NoError(t, err)
		assert.Equal(t, 6.5, got)

		got, err = s.Evaluate("pair()")
		require.NoError(t, err)
		assert.Equal(t, []string{"p", "2"}, got)
	})
}

func TestInjectNativeGraph(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		s := newSession(t, EngineConfig{Engine: engine, Sink: quietSink()})
		a, b := &item{Name: "a"}, &item{Name: "b"}
		sh := &shelf{items: []*item{a, b}}
		require.NoError(t, s.Inject("shelf", sh))

		got, err := s.Evaluate("shelf.first() === shelf.first()")
		require.NoError(t, err)
		assert.Equal(t, true, got)

		got, err = s.Evaluate("shelf.all()")
		require.NoError(t, err)
		assert.Equal(t, NativeArray{a, b}, got)

		got, err = s.Evaluate("shelf.first()")
		require.NoError(t, err)
		assert.Same(t, a, got)

		got, err = s.Evaluate("shelf.take(shelf.first()); shelf.count()")
		require.NoError(t, err)
		assert.Equal(t, int32(3), got)
		assert.Same(t, a, sh.items[2])

		got, err = s.Evaluate("shelf.names()")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "a"}, got)
	})
}

func TestInjectData(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		s := newSession(t, EngineConfig{Engine: engine, Sink: quietSink()})
		require.NoError(t, s.Inject("nums", []int{1, 2, 3}))
		require.NoError(t, s.Inject("greeting", "hi"))
		require.NoError(t, s.Inject("ratio", 1.5))
		require.NoError(t, s.Inject("nan", math.NaN()))
		require.NoError(t, s.Inject("nothing", nil))
		require.NoError(t, s.Inject("bytes", []byte{7, 8}))

		got, err := s.Evaluate("nums.length + nums[2]")
		require.NoError(t, err)
		assert.Equal(t, int32(6), got)

		got, err = s.Evaluate("greeting + ratio")
		require.NoError(t, err)
		assert.Equal(t, "hi1.5", got)

		got, err = s.Evaluate("isNaN(nan) && nothing === null")
		require.NoError(t, err)
		assert.Equal(t, true, got)

		got, err = s.Evaluate("bytes")
		require.NoError(t, err)
		assert.Equal(t, []int32{7, 8}, got)

		got, err = s.Evaluate("nums")
		require.NoError(t, err)
		assert.Equal(t, []int32{1, 2, 3}, got)
	})
}

func TestInjectReplacesBinding(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		s := newSession(t, EngineConfig{Engine: engine, Sink: quietSink()})
		require.NoError(t, s.Inject("v", 1))
		require.NoError(t, s.Inject("v", "two"))

		got, err := s.Evaluate("v")
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})
}

func TestInjectMapsAndStructValues(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		s := newSession(t, EngineConfig{Engine: engine, Sink: quietSink()})
		m := map[string]int{"a": 1}
		require.NoError(t, s.Inject("m", m))
		require.NoError(t, s.Inject("p", item{Name: "frozen"}))

		got, err := s.Evaluate("m.a = m.a + 4; m.a")
		require.NoError(t, err)
		assert.Equal(t, int32(5), got)
		assert.Equal(t, 5, m["a"])

		got, err = s.Evaluate("try { p.name = 'x'; 'set' } catch (e) { p.name }")
		require.NoError(t, err)
		assert.Equal(t, "frozen", got)
	})
}

func TestInjectRejectsEmptyName(t *testing.T) {
	s := newSession(t, EngineConfig{Sink: quietSink()})
	assert.Error(t, s.Inject("", 1))
}
