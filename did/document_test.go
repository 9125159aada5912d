package did

import "testing"

func TestCreateDocument_RoundTripsViaDID(t *testing.T) {
	doc, creds, err := CreateDocument("agent.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	if doc.ID != "did:wba:agent.example.com" {
		t.Errorf("doc.ID = %q, want %q", doc.ID, "did:wba:agent.example.com")
	}
	if creds.DID != doc.ID {
		t.Errorf("creds.DID = %q, want %q", creds.DID, doc.ID)
	}

	fragment, err := doc.FirstAuthenticationFragment()
	if err != nil {
		t.Fatalf("FirstAuthenticationFragment() error = %v", err)
	}
	if fragment != "key-1" {
		t.Errorf("fragment = %q, want %q", fragment, "key-1")
	}

	kp, err := creds.GetKeyPair(fragment)
	if err != nil {
		t.Fatalf("GetKeyPair() error = %v", err)
	}
	if kp.KeyType() != "secp256k1" {
		t.Errorf("KeyType() = %q, want secp256k1", kp.KeyType())
	}

	method, err := doc.VerificationMethodByFragment(fragment)
	if err != nil {
		t.Fatalf("VerificationMethodByFragment() error = %v", err)
	}
	keyType, ecdsaKey, _, err := method.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	if keyType != "secp256k1" {
		t.Errorf("keyType = %q, want secp256k1", keyType)
	}
	if ecdsaKey.X.Cmp(kp.ECDSAPrivateKey.X) != 0 {
		t.Error("document's public key does not match the generated private key")
	}
}

func TestCreateDocument_RejectsIPHostname(t *testing.T) {
	if _, _, err := CreateDocument("127.0.0.1", nil, nil, nil); err == nil {
		t.Error("expected an error when hostname is an IP address")
	}
}

func TestBuildDID_WithPortAndPath(t *testing.T) {
	port := 9000
	id, err := BuildDID("agent.example.com", &port, []string{"users", "alice"})
	if err != nil {
		t.Fatalf("BuildDID() error = %v", err)
	}
	want := "did:wba:agent.example.com%3A9000:users:alice"
	if id != want {
		t.Errorf("BuildDID() = %q, want %q", id, want)
	}
}

func TestCredentials_GetKeyPair_MissingFromDocument(t *testing.T) {
	doc, creds, err := CreateDocument("agent.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	creds.KeyPairs["ghost"] = &KeyPair{KeyID: "ghost"}

	if _, err := creds.GetKeyPair("ghost"); err == nil {
		t.Error("expected an error for a key pair absent from the DID document")
	}
	_ = doc
}

func TestVerificationMethod_PublicKey_RequiresAnEncoding(t *testing.T) {
	m := &VerificationMethod{ID: "did:wba:x#key-1"}
	if _, _, _, err := m.PublicKey(); err == nil {
		t.Error("expected an error when neither multibase nor jwk is present")
	}
}
