package toolregistry_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/runledger/toolregistry"
)

func TestResolve_MissingHandler(t *testing.T) {
	allowed := map[string]struct{}{"search_docs": {}, "ghost_tool": {}}
	module := toolregistry.Module{
		"search_docs": func(args map[string]any) (map[string]any, error) { return map[string]any{}, nil },
	}

	_, err := toolregistry.Resolve(allowed, module, nil)
	require.Error(t, err)
	var rerr *toolregistry.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, []string{"ghost_tool"}, rerr.Missing)
}

func TestResolve_OverlayWins(t *testing.T) {
	allowed := map[string]struct{}{"t": {}}
	module := toolregistry.Module{
		"t": func(args map[string]any) (map[string]any, error) { return map[string]any{"from": "builtin"}, nil },
	}
	overlay := toolregistry.Module{
		"t": func(args map[string]any) (map[string]any, error) { return map[string]any{"from": "overlay"}, nil },
	}

	reg, err := toolregistry.Resolve(allowed, module, overlay)
	require.NoError(t, err)
	res, err := reg.Invoke("t", nil)
	require.NoError(t, err)
	assert.Equal(t, "overlay", res["from"])
}

func TestInvoke_CapturesHandlerError(t *testing.T) {
	allowed := map[string]struct{}{"t": {}}
	module := toolregistry.Module{
		"t": func(args map[string]any) (map[string]any, error) { return nil, errors.New("boom") },
	}
	reg, err := toolregistry.Resolve(allowed, module, nil)
	require.NoError(t, err)

	_, err = reg.Invoke("t", nil)
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestInvoke_NotRegistered(t *testing.T) {
	reg, err := toolregistry.Resolve(map[string]struct{}{}, nil, nil)
	require.NoError(t, err)

	_, err = reg.Invoke("nope", nil)
	require.ErrorIs(t, err, toolregistry.ErrNotRegistered)
}

func TestInvoke_RecoversPanic(t *testing.T) {
	allowed := map[string]struct{}{"t": {}}
	module := toolregistry.Module{
		"t": func(args map[string]any) (map[string]any, error) { panic("kaboom") },
	}
	reg, err := toolregistry.Resolve(allowed, module, nil)
	require.NoError(t, err)

	_, err = reg.Invoke("t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}
