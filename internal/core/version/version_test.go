package version

import (
	"testing"

	"tariffsync/internal/platform/testkit"
)

func TestInfo_Defaults(t *testing.T) {
	bi := Info()
	if bi.Service != "tariffsync" {
		t.Fatalf("service = %q", bi.Service)
	}
	if bi.Version != "dev" {
		t.Fatalf("version = %q", bi.Version)
	}
}

func TestInfo_Ldflags(t *testing.T) {
	testkit.Swap(t, &version, "v1.2.3")
	testkit.Swap(t, &commit, "abc123")
	testkit.MustContain(t, Info().String(), "v1.2.3 (abc123")
}
