package integration_test

import (
	"context"
	"testing"

	vybiumpep "github.com/vybium/vybium-pep/pkg/vybium-pep"
)

// Test03_ArchiveRoundTrip solves with an archive configured, reopens the
// archive and compares the stored record with the result
//
// Related example: examples/06_result_archive/main.go (user-facing demonstration)
func Test03_ArchiveRoundTrip(t *testing.T) {
	t.Log("=== Test 03: Solve -> Archive -> Read Back ===")

	dir := t.TempDir()
	cfg := vybiumpep.DefaultConfig().WithStorePath(dir)

	t.Log("Step 1: Solving with the archive enabled...")
	run, err := vybiumpep.RunMethod(context.Background(), "past_extragradient", nil, cfg, quiet())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	res := run.Result
	t.Logf("  digest=%s status=%s bound=%.9g", res.Digest, res.Status, res.Bound)
	if res.Status != vybiumpep.StateSolved || res.Gram == nil {
		t.Fatalf("Expected a solved result with a Gram matrix, got %s: %s", res.Status, res.Reason)
	}

	t.Log("Step 2: Reopening the archive...")
	archive, err := vybiumpep.OpenArchive(dir, nil)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer archive.Close()

	rec, err := archive.Get(res.Digest)
	if err != nil {
		t.Fatalf("Failed to read record: %v", err)
	}

	t.Log("Step 3: Comparing record and result...")
	if rec.ProblemID != res.ID || rec.Status != res.Status.String() {
		t.Fatalf("Record %s/%s does not match result %s/%s", rec.ProblemID, rec.Status, res.ID, res.Status)
	}
	if rec.Bound != res.Bound || rec.Rank != res.Rank {
		t.Fatalf("Record bound %.9g rank %d, result %.9g rank %d", rec.Bound, rec.Rank, res.Bound, res.Rank)
	}
	if rec.Commitment != res.Commitment || rec.Verified != res.Verified() {
		t.Fatal("Record certificate fields do not match the result")
	}
	if len(rec.Gram) != res.Gram.SymmetricDim() {
		t.Fatalf("Record Gram has %d rows, expected %d", len(rec.Gram), res.Gram.SymmetricDim())
	}

	if _, err := archive.Get("not-a-digest"); !vybiumpep.IsCode(err, vybiumpep.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	t.Log("✅ Test 03 PASSED: archived results round-trip")
}
