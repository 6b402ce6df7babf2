package xrpl

import "testing"

func TestIsValidClassicAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		valid   bool
	}{
		{"genesis account", "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", true},
		{"account zero", "rrrrrrrrrrrrrrrrrrrrrhoLvTp", true},
		{"account one", "rrrrrrrrrrrrrrrrrrrrBZbvji", true},
		{"ordinary account", "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH", true},

		{"empty", "", false},
		{"wrong prefix", "XHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", false},
		{"corrupted checksum", "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTi", false},
		{"truncated", "rHb9CJAWyB4rj91VRWn96Dk", false},
		{"non-alphabet char", "rHb9CJAWyB4rj91VRWn96DkukG4bwdty0h", false},
		{"seed not address", "sn259rEFXrQrWyx3Q7XneWcwV6dfL", false},
		{"free text", "not-an-address", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidClassicAddress(tt.address); got != tt.valid {
				t.Errorf("IsValidClassicAddress(%q) = %v, want %v", tt.address, got, tt.valid)
			}
		})
	}
}

func TestIsValidSeed(t *testing.T) {
	tests := []struct {
		name  string
		seed  string
		valid bool
	}{
		{"family seed", "sn259rEFXrQrWyx3Q7XneWcwV6dfL", true},
		{"ed25519 seed", "sEdTM1uX8pu2do5XvTnutH6HsouMaM2", true},

		{"empty", "", false},
		{"address not seed", "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", false},
		{"corrupted checksum", "sn259rEFXrQrWyx3Q7XneWcwV6dfM", false},
		{"wrong prefix char", "xn259rEFXrQrWyx3Q7XneWcwV6dfL", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSeed(tt.seed); got != tt.valid {
				t.Errorf("IsValidSeed(%q) = %v, want %v", tt.seed, got, tt.valid)
			}
		})
	}
}
