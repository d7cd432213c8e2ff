package metrics

import (
	"path/filepath"
	"testing"

	"storyweave/internal/storyworld"
)

func TestComputeHarbor(t *testing.T) {
	w, err := storyworld.Load(filepath.Join("..", "storyworld", "testdata", "harbor.json"))
	if err != nil {
		t.Fatalf("loading harbor: %v", err)
	}
	m := Compute(w)

	if m.Encounters != 6 || m.Endings != 4 || m.Options != 4 || m.Reactions != 5 || m.Effects != 4 {
		t.Fatalf("unexpected counts %+v", m)
	}
	if m.OptionsPerEncounter != 2 {
		t.Fatalf("expected 2 options per encounter with options, got %v", m.OptionsPerEncounter)
	}
	if m.EffectsPerReaction != 0.8 {
		t.Fatalf("expected 0.8 effects per reaction, got %v", m.EffectsPerReaction)
	}
	if m.DesirabilityVars != 0.4 {
		t.Fatalf("expected 0.4 desirability vars per reaction, got %v", m.DesirabilityVars)
	}
	if m.VisibilityGated != 0.25 || m.VisibilityVars != 1 {
		t.Fatalf("unexpected visibility metrics %v %v", m.VisibilityGated, m.VisibilityVars)
	}

	if len(m.Secrets) != 1 {
		t.Fatalf("expected one secret, got %+v", m.Secrets)
	}
	secret := m.Secrets[0]
	if secret.ID != "page_secret_tide" || secret.Vars != 3 || !secret.UsesDistance || !secret.OK {
		t.Fatalf("unexpected secret gate %+v", secret)
	}

	if len(m.Checks) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(m.Checks))
	}
	for _, c := range m.Checks {
		if c.OK || c.Status() != "LOW" {
			t.Errorf("expected %s to be LOW for a small sample, got %+v", c.Name, c)
		}
	}
}
