package keys

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSimpleKeyfile(t *testing.T) {
	dir := t.TempDir()

	simpleKeyfile := NewSimpleKeyfile(filepath.Join(dir, "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, _ = GenerateECDSAKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(*nKey, *key) {
		t.Fatalf("Keys do not match")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()

	key, _ := GenerateECDSAKey()
	rawKey := PrivateKeyHex(key)

	badKeyPath := filepath.Join(dir, "priv_key_bad")

	for _, fm := range []os.FileMode{0777, 0766, 0744, 0644, 0444} {
		os.WriteFile(badKeyPath, []byte(rawKey), fm)
		os.Chmod(badKeyPath, fm)

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || key file should return permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "priv_key_good")

	for _, fm := range []os.FileMode{0700, 0600, 0400} {
		os.WriteFile(goodKeyPath, []byte(rawKey), fm)
		os.Chmod(goodKeyPath, fm)

		if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
			t.Fatalf("%o || key file should not return error. Got %v", fm, err)
		}
	}
}

func TestReadOrGenerate(t *testing.T) {
	kf := NewSimpleKeyfile(filepath.Join(t.TempDir(), "priv_key"))

	first, created, err := ReadOrGenerate(kf)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !created {
		t.Fatalf("first call should create a key")
	}

	second, created, err := ReadOrGenerate(kf)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if created {
		t.Fatalf("second call should read the existing key")
	}

	if IdentityHex(&first.PublicKey) != IdentityHex(&second.PublicKey) {
		t.Fatalf("identity should be stable across reads")
	}
}

func TestPublicKeyHex(t *testing.T) {
	key, _ := GenerateECDSAKey()

	pub, err := ParsePublicKeyHex(PublicKeyHex(&key.PublicKey))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if IdentityHex(pub) != IdentityHex(&key.PublicKey) {
		t.Fatalf("parsed key should derive the same identity")
	}

	if len(IdentityHex(pub)) != 64 {
		t.Fatalf("identity should be 64 hex characters, got %d", len(IdentityHex(pub)))
	}

	if _, err := ParsePublicKeyHex("0x1234"); err == nil {
		t.Fatalf("garbage public key should be rejected")
	}
}

func TestSignatureEncoding(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	msg := []byte("J'aime mieux forger mon ame que la meubler")

	r, s, err := Sign(privKey, msg)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	dr, ds, err := DecodeSignature(EncodeSignature(r, s))
	if err != nil {
		t.Fatal(err)
	}

	if r.Cmp(dr) != 0 || s.Cmp(ds) != 0 {
		t.Fatalf("decoded signature differs")
	}

	if !Verify(&privKey.PublicKey, msg, dr, ds) {
		t.Fatalf("signature should verify")
	}

	other, _ := GenerateECDSAKey()
	if Verify(&other.PublicKey, msg, dr, ds) {
		t.Fatalf("signature should not verify under another key")
	}
}
