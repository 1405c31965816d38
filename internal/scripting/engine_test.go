package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	// generous bound so slow CI machines do not trip it
	e, err := NewEngine(dir, time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestEvalReadsThis(t *testing.T) {
	e := newTestEngine(t, "")
	this := tag.New("b1", map[string]tag.Value{"room1.x": tag.Number(3)})

	v, err := e.Eval(context.Background(), `this["room1.x"] * 2`, this, nil)
	require.NoError(t, err)
	n, ok := v.AsNumber()
	require.True(t, ok)
	assert.Equal(t, 6.0, n)

	v, err = e.Eval(context.Background(), `this.id`, this, nil)
	require.NoError(t, err)
	assert.Equal(t, "b1", v.Text())
}

func TestEvalBotLookup(t *testing.T) {
	e := newTestEngine(t, "")
	other := tag.New("b2", map[string]tag.Value{"aux.label": tag.String("hi")})
	lookup := func(id string) (*tag.Entity, bool) {
		if id == "b2" {
			return other, true
		}
		return nil, false
	}
	this := tag.New("b1", nil)

	v, err := e.Eval(context.Background(), `bot("b2")["aux.label"] .. "!"`, this, lookup)
	require.NoError(t, err)
	assert.Equal(t, "hi!", v.Text())

	v, err = e.Eval(context.Background(), `bot("missing") == nil`, this, lookup)
	require.NoError(t, err)
	b, _ := v.AsBool()
	assert.True(t, b)
}

func TestEvalTableBecomesArray(t *testing.T) {
	e := newTestEngine(t, "")
	v, err := e.Eval(context.Background(), `{"a", "b"}`, tag.New("b1", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, tag.KindArray, v.Kind())
	assert.Equal(t, "[a,b]", v.Text())
}

func TestEvalErrors(t *testing.T) {
	e := newTestEngine(t, "")
	_, err := e.Eval(context.Background(), `)(`, tag.New("b1", nil), nil)
	assert.Error(t, err)

	_, err = e.Eval(context.Background(), `nosuch.field`, tag.New("b1", nil), nil)
	assert.Error(t, err)
}

func TestPreludeScripts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helpers.lua"),
		[]byte("function double(x) return x * 2 end\n"), 0o644))

	e := newTestEngine(t, dir)
	v, err := e.Eval(context.Background(), `double(21)`, tag.New("b1", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "42", v.Text())
}

func TestUnsafeLibrariesAreClosed(t *testing.T) {
	e := newTestEngine(t, "")
	for _, src := range []string{
		"os ~= nil", "io ~= nil", "require ~= nil", "dofile ~= nil",
		"loadstring ~= nil", "load ~= nil", "debug ~= nil", "_G ~= nil",
	} {
		v, err := e.Eval(context.Background(), src, tag.New("b1", nil), nil)
		require.NoError(t, err, src)
		assert.False(t, v.Truthy(), src)
	}

	v, err := e.Eval(context.Background(), `string.upper("ok") .. math.floor(2.5) .. table.concat({"a", "b"})`, tag.New("b1", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "OK2ab", v.Text())
}

func TestFormulasCannotKeepState(t *testing.T) {
	e := newTestEngine(t, "")
	counter := `(function() n = (n or 0) + 1 return n end)()`
	for i := 0; i < 3; i++ {
		v, err := e.Eval(context.Background(), counter, tag.New("b1", nil), nil)
		require.NoError(t, err)
		assert.Equal(t, "1", v.Text())
	}

	_, err := e.Eval(context.Background(), `(function() math.floor = nil return 1 end)()`, tag.New("b1", nil), nil)
	assert.ErrorContains(t, err, "read-only")
	v, err := e.Eval(context.Background(), `math.floor(1.5)`, tag.New("b1", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "1", v.Text())
}

func TestRunawayFormulaTimesOut(t *testing.T) {
	e, err := NewEngine("", 20*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)

	start := time.Now()
	_, err = e.Eval(context.Background(), `(function() while true do end end)()`, tag.New("b1", nil), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	v, err := e.Eval(context.Background(), `1 + 1`, tag.New("b1", nil), nil)
	require.NoError(t, err, "the engine stays usable after a timeout")
	assert.Equal(t, "2", v.Text())
}

func TestCompiledCacheIsBounded(t *testing.T) {
	e := newTestEngine(t, "")
	for i := 0; i < maxCompiled+10; i++ {
		_, err := e.Eval(context.Background(), fmt.Sprintf("%d", i), tag.New("b1", nil), nil)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, e.Cached(), maxCompiled)
	assert.Positive(t, e.Cached())
}
