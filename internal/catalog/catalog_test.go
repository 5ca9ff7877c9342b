package catalog

import "testing"

func TestLoad(t *testing.T) {
	buildings, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(buildings) != 6 {
		t.Fatalf("expected 6 buildings, got %d", len(buildings))
	}

	byID := make(map[string]Building, len(buildings))
	for _, b := range buildings {
		byID[b.ID] = b
	}
	for _, id := range []string{Gosplan, Kremlin, KGB} {
		if _, ok := byID[id]; !ok {
			t.Errorf("catalog missing %s", id)
		}
	}
	if byID[Gosplan].Status != StatusActive {
		t.Errorf("gosplan status = %s, want active", byID[Gosplan].Status)
	}
	if byID["nii"].Status != StatusLocked {
		t.Errorf("nii status = %s, want locked", byID["nii"].Status)
	}
}

func TestInteractable(t *testing.T) {
	gosplan := Building{ID: Gosplan, Status: StatusActive}
	kremlin := Building{ID: Kremlin, Status: StatusActive}
	kgb := Building{ID: KGB, Status: StatusActive}
	locked := Building{ID: "nii", Status: StatusLocked}

	tests := []struct {
		name          string
		b             Building
		hasResources  bool
		oversightIdle bool
		want          bool
	}{
		{"no resources, kremlin only", kremlin, false, true, true},
		{"no resources, gosplan blocked", gosplan, false, true, false},
		{"oversight active, kgb only", kgb, true, false, true},
		{"oversight active, gosplan blocked", gosplan, true, false, false},
		{"oversight active, kremlin blocked", kremlin, true, false, false},
		{"normal operation", gosplan, true, true, true},
		{"locked stays locked", locked, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interactable(tt.b, tt.hasResources, tt.oversightIdle); got != tt.want {
				t.Errorf("Interactable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVisualStatus_DoesNotOverwriteStored(t *testing.T) {
	nii := Building{ID: "nii", Status: StatusLocked}

	// During an oversight episode everything but the KGB paints locked.
	if got := VisualStatus(Building{ID: Gosplan, Status: StatusActive}, true, false); got != StatusLocked {
		t.Errorf("gosplan visual = %s, want locked during oversight", got)
	}
	// After it resolves the stored status is back untouched.
	if got := VisualStatus(nii, true, true); got != StatusLocked {
		t.Errorf("nii visual = %s, want its stored locked status", got)
	}
}
