package version

import "testing"

func TestString(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version, GitCommit = "v1.2.3", "abc123"
	if got := String(); got != "v1.2.3 (commit: abc123)" {
		t.Errorf("String() = %q", got)
	}
	if got := GetVersion(); got != "v1.2.3" {
		t.Errorf("GetVersion() = %q", got)
	}
	if got := UserAgent(); got != "statvalue/v1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
}
