package signature_test

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

const (
	pkHexKey    = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	from        = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
	otherHexKey = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Signing(t *testing.T) {
	t.Log("Given the need to sign and verify messages.")
	{
		pk, err := crypto.HexToECDSA(pkHexKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a private key: %s", failed, err)
		}
		signer := signature.NewPrivateKey(pk)

		msg := []byte("subdivision|0x01|owner|1|1")
		sig, err := signer.Sign(msg)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign data: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to sign data.", success)

		var verifier signature.Secp256k1
		if err := verifier.Verify(msg, sig, signer.PublicKey()); err != nil {
			t.Fatalf("\t%s\tShould be able to verify the signature: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to verify the signature.", success)

		addr, err := verifier.DeriveAddress(signer.PublicKey())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to derive the address: %s", failed, err)
		}
		if addr != from || signer.Address() != from {
			t.Logf("\t\tgot: %s", addr)
			t.Logf("\t\texp: %s", from)
			t.Fatalf("\t%s\tShould get back the right address.", failed)
		}
		t.Logf("\t%s\tShould get back the right address.", success)

		if err := verifier.Verify([]byte("tampered"), sig, signer.PublicKey()); err == nil {
			t.Fatalf("\t%s\tShould reject a tampered message.", failed)
		}
		t.Logf("\t%s\tShould reject a tampered message.", success)

		other, err := crypto.HexToECDSA(otherHexKey)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a second key: %s", failed, err)
		}
		if err := verifier.Verify(msg, sig, signature.NewPrivateKey(other).PublicKey()); err == nil {
			t.Fatalf("\t%s\tShould reject a signature under the wrong public key.", failed)
		}
		t.Logf("\t%s\tShould reject a signature under the wrong public key.", success)
	}
}

func Test_DoubleHash(t *testing.T) {
	t.Log("Given the need to double hash data.")
	{
		h1 := signature.DoubleHashString("siertri")
		h2 := signature.DoubleHashString("siertri")
		if h1 != h2 {
			t.Fatalf("\t%s\tShould get back the same hash twice.", failed)
		}
		t.Logf("\t%s\tShould get back the same hash twice.", success)

		if !strings.HasPrefix(h1, "0x") || len(h1) != 66 {
			t.Fatalf("\t%s\tShould get a 0x prefixed 32 byte hash: %s", failed, h1)
		}
		t.Logf("\t%s\tShould get a 0x prefixed 32 byte hash.", success)

		if h1 == signature.DoubleHashString("siertri!") {
			t.Fatalf("\t%s\tShould get a different hash for different data.", failed)
		}
		t.Logf("\t%s\tShould get a different hash for different data.", success)
	}
}

func Test_LeadingZeroBits(t *testing.T) {
	tt := []struct {
		hash string
		bits int
	}{
		{"0xff00", 0},
		{"0x7f00", 1},
		{"0x0f00", 4},
		{"0x00ff", 8},
		{"0x0001", 15},
		{"0x0000", 16},
		{"nothex", 0},
	}

	t.Log("Given the need to count leading zero bits of a hash.")
	{
		for testID, tst := range tt {
			got := signature.LeadingZeroBits(tst.hash)
			if got != tst.bits {
				t.Errorf("\t%s\tTest %d:\tShould count %d bits for %s, got %d.", failed, testID, tst.bits, tst.hash, got)
				continue
			}
			t.Logf("\t%s\tTest %d:\tShould count %d bits for %s.", success, testID, tst.bits, tst.hash)
		}
	}
}
