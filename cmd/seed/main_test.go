package main

import "testing"

func TestRandomAllergiesNeverNil(t *testing.T) {
	pool := []string{"Penicillin", "Peanuts", "Latex", "Pollen", "Aspirin", "Shellfish"}

	// Most samples draw nothing; every one of them must still be an empty
	// array, not nil, or the NOT NULL allergies column rejects the insert.
	for i := 0; i < 200; i++ {
		if allergies := randomAllergies(pool); allergies == nil {
			t.Fatal("randomAllergies returned nil, which encodes as SQL NULL")
		}
	}

	if allergies := randomAllergies(nil); allergies == nil {
		t.Fatal("randomAllergies(nil pool) returned nil")
	}
}
