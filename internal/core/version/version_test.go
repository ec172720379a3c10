package version

import "testing"

func TestInfoDefaults(t *testing.T) {
	bi := Info()
	if bi.Service != Service || bi.Version != "dev" || bi.Commit != "none" {
		t.Fatalf("Info() = %+v", bi)
	}
	if got := bi.String(); got != "t2-cluster dev (none)" {
		t.Fatalf("String() = %q", got)
	}
}
