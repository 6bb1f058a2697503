package procedure

import (
	"crypto/sha256"
	"fmt"

	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/vault"
)

// CopyRecord reads the record at its "source" input and writes it
// unchanged to its "dest" output, under a caller-supplied hint. It
// demonstrates the registry's vault-internal read/write contract
// without deriving anything new from the secret it moves.
type CopyRecord struct {
	Hint types.RecordHint
}

func (CopyRecord) Kind() string { return "copy_record" }

func (p CopyRecord) Execute(cs *vault.ClientState, inputs map[string]types.Location, outputs map[string]types.Location) (Result, error) {
	src, ok := inputs["source"]
	if !ok {
		return Result{}, fmt.Errorf("copy_record: missing \"source\" input")
	}
	dst, ok := outputs["dest"]
	if !ok {
		return Result{}, fmt.Errorf("copy_record: missing \"dest\" output")
	}

	plaintext, err := cs.ReadSecret(cs.Client, src)
	if err != nil {
		return Result{}, fmt.Errorf("copy_record: read source: %w", err)
	}
	if len(plaintext) == 0 {
		return Result{}, fmt.Errorf("copy_record: source record is empty or missing")
	}

	if err := cs.WriteToVault(dst, plaintext, p.Hint); err != nil {
		return Result{}, fmt.Errorf("copy_record: write dest: %w", err)
	}
	return Result{}, nil
}

// GetPublicKeyStub derives a non-secret "public key" from a "seed"
// input and returns it to the caller via Result.Public: it is
// explicitly a read procedure. The derivation is SHA-256 over the
// seed's plaintext, a placeholder for whatever real key-derivation
// scheme (e.g. Ed25519, SLIP10) a production procedure catalogue would
// plug in here; it is not cryptographically meaningful key material.
type GetPublicKeyStub struct{}

func (GetPublicKeyStub) Kind() string { return "get_public_key_stub" }

func (GetPublicKeyStub) Execute(cs *vault.ClientState, inputs map[string]types.Location, outputs map[string]types.Location) (Result, error) {
	seedLoc, ok := inputs["seed"]
	if !ok {
		return Result{}, fmt.Errorf("get_public_key_stub: missing \"seed\" input")
	}

	seed, err := cs.ReadSecret(cs.Client, seedLoc)
	if err != nil {
		return Result{}, fmt.Errorf("get_public_key_stub: read seed: %w", err)
	}
	if len(seed) == 0 {
		return Result{}, fmt.Errorf("get_public_key_stub: seed record is empty or missing")
	}

	digest := sha256.Sum256(seed)
	return Result{Public: digest[:]}, nil
}
