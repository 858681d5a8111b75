package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/estimate-engine/api"
	"github.com/warp/estimate-engine/config"
	"github.com/warp/estimate-engine/factory"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScenariosCommand_List(t *testing.T) {
	out, err := execute(t, "scenarios")
	require.NoError(t, err)

	assert.Contains(t, out, "ID")
	for _, s := range factory.Scenarios() {
		assert.Contains(t, out, s.ID)
	}
	assert.Contains(t, out, "$760.00")
}

func TestScenariosCommand_Run(t *testing.T) {
	out, err := execute(t, "scenarios", "--run", "tpl-subrogation")
	require.NoError(t, err)

	var est struct {
		TotalPatientResponsibility float64 `json:"totalPatientResponsibility"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &est))
	assert.Equal(t, 200.0, est.TotalPatientResponsibility)

	_, err = execute(t, "scenarios", "--run", "nope")
	assert.ErrorIs(t, err, api.ErrUnknownScenario)
}

func TestEstimateCommand_File(t *testing.T) {
	sc, ok := factory.FindScenario("embedded-family-deductible")
	require.True(t, ok)
	body, err := json.Marshal(sc.Request)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	out, err := execute(t, "estimate", "--file", path, "--pretty")
	require.NoError(t, err)
	assert.Contains(t, out, "\n  \"metaData\"")

	var est struct {
		TotalPatientResponsibility float64 `json:"totalPatientResponsibility"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &est))
	assert.Equal(t, 360.0, est.TotalPatientResponsibility)
}

func TestEstimateCommand_Errors(t *testing.T) {
	_, err := execute(t, "estimate")
	assert.Error(t, err, "--file is required")

	_, err = execute(t, "estimate", "--file", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "reading request")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"payers": [`), 0o600))
	_, err = execute(t, "estimate", "--file", path)
	assert.ErrorIs(t, err, factory.ErrInvalidRequest)
}

func TestRouterOptions_AdminOnlyInDevelopment(t *testing.T) {
	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.False(t, routerOptions(cfg).EnableAdmin, "unconfigured deployments get no admin routes")

	cfg.Env = "development"
	opts := routerOptions(cfg)
	assert.True(t, opts.EnableAdmin)
	assert.Equal(t, cfg.CORSOrigins, opts.CORSOrigins)
}
