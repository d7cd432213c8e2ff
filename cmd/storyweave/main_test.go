package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"storyweave/internal/config"
)

var harborPath = filepath.Join("..", "..", "internal", "storyworld", "testdata", "harbor.json")

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, validateCmd(), harborPath)
	if err != nil {
		t.Fatalf("expected harbor to validate, got %v\n%s", err, out)
	}
	if strings.Contains(out, "Errors") {
		t.Fatalf("expected no errors section, got %s", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"encounters": [{"id": "a", "options": [{"id": "o", "reactions": [{"id": "r", "consequence_id": "nowhere"}]}]}]}`), 0o600); err != nil {
		t.Fatalf("writing document: %v", err)
	}
	out, err = execute(t, validateCmd(), bad)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(out, "dangling_consequence") {
		t.Fatalf("expected dangling_consequence in output, got %s", out)
	}
}

func TestRehearseCommandJSON(t *testing.T) {
	out, err := execute(t, rehearseCmd(), harborPath, "--runs", "200", "--seed", "11", "--workers", "2", "--json")
	if err != nil {
		t.Fatalf("rehearse: %v", err)
	}
	var payload struct {
		Report struct {
			Runs int   `json:"runs"`
			Seed int64 `json:"seed"`
		} `json:"report"`
		Diagnosis struct {
			Findings []json.RawMessage `json:"findings"`
		} `json:"diagnosis"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if payload.Report.Runs != 200 || payload.Report.Seed != 11 {
		t.Fatalf("expected flag overrides, got %+v", payload.Report)
	}
}

func TestRehearseCommandSeedZero(t *testing.T) {
	out, err := execute(t, rehearseCmd(), harborPath, "--runs", "10", "--seed", "0", "--json")
	if err != nil {
		t.Fatalf("rehearse: %v", err)
	}
	var payload struct {
		Report struct {
			Seed int64 `json:"seed"`
		} `json:"report"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if payload.Report.Seed != 0 {
		t.Fatalf("expected seed 0, got %d", payload.Report.Seed)
	}

	if _, err := execute(t, rehearseCmd(), harborPath, "--runs", "0"); err == nil {
		t.Fatalf("expected explicit zero runs to be rejected")
	}
}

func TestRehearsalConfigDefaults(t *testing.T) {
	cfg := config.Default("harbor")
	rc := rehearsalConfig(&cfg, rehearseOptions{})
	if rc.Runs != cfg.Rehearsal.Runs || rc.Seed != cfg.Rehearsal.Seed || rc.MaxSteps != cfg.Rehearsal.MaxSteps {
		t.Fatalf("expected config values without flags, got %+v", rc)
	}

	rc = rehearsalConfig(&cfg, rehearseOptions{seed: 0, workers: 0, changed: map[string]bool{"seed": true, "workers": true}})
	if rc.Seed != 0 || rc.Workers != 0 {
		t.Fatalf("expected explicit zero seed and workers, got %+v", rc)
	}
}

func TestRehearseCommandText(t *testing.T) {
	out, err := execute(t, rehearseCmd(), harborPath, "--runs", "200")
	if err != nil {
		t.Fatalf("rehearse: %v", err)
	}
	if !strings.Contains(out, "page_end_alliance") || !strings.Contains(out, "Endings (") {
		t.Fatalf("expected ending table, got %s", out)
	}
}

func TestPlayCommandReplay(t *testing.T) {
	out, err := execute(t, playCmd(), harborPath, "--seed", "1", "--choose", "opt_help,opt_confide")
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !strings.Contains(out, "Outcome: ended at page_end_alliance") {
		t.Fatalf("expected alliance ending, got %s", out)
	}

	out, err = execute(t, playCmd(), harborPath, "--seed", "1", "--choose", "opt_help")
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !strings.Contains(out, "open options") || !strings.Contains(out, "opt_confide") {
		t.Fatalf("expected open options listed, got %s", out)
	}

	if _, err := execute(t, playCmd(), harborPath, "--seed", "1", "--choose", "opt_threaten"); err == nil {
		t.Fatalf("expected closed option to fail")
	}
}

func TestInitCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := execute(t, initCmd()); err == nil {
		t.Fatalf("expected --name to be required")
	}
	if _, err := execute(t, initCmd(), "--name", "harbor"); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, path := range []string{config.DefaultPath, starterPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to exist: %v", path, err)
		}
	}
	if _, err := execute(t, initCmd(), "--name", "harbor"); err == nil {
		t.Fatalf("expected init to refuse overwriting")
	}

	if _, err := execute(t, validateCmd()); err != nil {
		t.Fatalf("expected scaffolded project to validate, got %v", err)
	}
}

func TestParseParamPairs(t *testing.T) {
	params, err := parseParamPairs([]string{"1=harbor", " 2 = 10 ", ""})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if params["1"] != "harbor" || params["2"] != "10" {
		t.Fatalf("unexpected params %v", params)
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseParamPairs([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
