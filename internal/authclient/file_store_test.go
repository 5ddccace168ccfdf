package authclient

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileCredentialStore(path, zaptest.NewLogger(t))

	if _, ok := store.Load(); ok {
		t.Fatalf("expected empty store before first save")
	}

	savedPair := CredentialPair{
		AccessToken:   "access-token",
		AccessExpiry:  time.Now().UTC().Add(time.Hour).Truncate(time.Second),
		RefreshToken:  "refresh-token",
		RefreshExpiry: time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second),
	}
	if saveErr := store.Save(savedPair); saveErr != nil {
		t.Fatalf("save failed: %v", saveErr)
	}

	reopened := NewFileCredentialStore(path, zaptest.NewLogger(t))
	loadedPair, ok := reopened.Load()
	if !ok {
		t.Fatalf("expected stored pair after reopen")
	}
	if loadedPair.AccessToken != savedPair.AccessToken || loadedPair.RefreshToken != savedPair.RefreshToken {
		t.Fatalf("tokens did not survive the round trip: %+v", loadedPair)
	}
	if !loadedPair.AccessExpiry.Equal(savedPair.AccessExpiry) {
		t.Fatalf("access expiry drifted: %v vs %v", loadedPair.AccessExpiry, savedPair.AccessExpiry)
	}
}

func TestFileStoreReplaceAccessKeepsRefreshToken(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileCredentialStore(path, zaptest.NewLogger(t))

	if saveErr := store.Save(CredentialPair{AccessToken: "old-access", RefreshToken: "refresh-token"}); saveErr != nil {
		t.Fatalf("save failed: %v", saveErr)
	}
	newExpiry := time.Now().UTC().Add(30 * time.Minute)
	if replaceErr := store.ReplaceAccess("new-access", newExpiry); replaceErr != nil {
		t.Fatalf("replace failed: %v", replaceErr)
	}

	pair, ok := store.Load()
	if !ok {
		t.Fatalf("expected stored pair")
	}
	if pair.AccessToken != "new-access" {
		t.Fatalf("access token not replaced: %q", pair.AccessToken)
	}
	if pair.RefreshToken != "refresh-token" {
		t.Fatalf("refresh token must survive access replacement: %q", pair.RefreshToken)
	}
}

func TestFileStoreClearRemovesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileCredentialStore(path, zaptest.NewLogger(t))

	if saveErr := store.Save(CredentialPair{AccessToken: "access", RefreshToken: "refresh"}); saveErr != nil {
		t.Fatalf("save failed: %v", saveErr)
	}
	if clearErr := store.Clear(); clearErr != nil {
		t.Fatalf("clear failed: %v", clearErr)
	}
	if _, ok := store.Load(); ok {
		t.Fatalf("expected empty store after clear")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("expected credential file removed, stat err: %v", statErr)
	}
}

func TestFileStoreDegradesOnCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.json")
	if writeErr := os.WriteFile(path, []byte("not json at all"), 0o600); writeErr != nil {
		t.Fatalf("seeding corrupt file failed: %v", writeErr)
	}

	store := NewFileCredentialStore(path, zaptest.NewLogger(t))
	if _, ok := store.Load(); ok {
		t.Fatalf("corrupt file must read as absent")
	}
	if replaceErr := store.ReplaceAccess("access", time.Now().Add(time.Hour)); replaceErr != nil {
		t.Fatalf("replace on corrupt file must degrade, got: %v", replaceErr)
	}
}

func TestCredentialPairExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	empty := CredentialPair{}
	if !empty.AccessExpired(now) || !empty.RefreshExpired(now) {
		t.Fatalf("missing tokens must count as expired")
	}

	unknownLifetime := CredentialPair{AccessToken: "a", RefreshToken: "r"}
	if unknownLifetime.AccessExpired(now) || unknownLifetime.RefreshExpired(now) {
		t.Fatalf("zero expiry must be presumed live")
	}

	stale := CredentialPair{
		AccessToken:   "a",
		AccessExpiry:  now.Add(-time.Minute),
		RefreshToken:  "r",
		RefreshExpiry: now.Add(time.Hour),
	}
	if !stale.AccessExpired(now) {
		t.Fatalf("past access expiry must report expired")
	}
	if stale.RefreshExpired(now) {
		t.Fatalf("future refresh expiry must report live")
	}
}
