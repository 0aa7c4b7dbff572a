package mimc

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestHashDeterministic(t *testing.T) {
	c := qt.New(t)

	a, err := Hash(big.NewInt(1), big.NewInt(2), big.NewInt(3))
	c.Assert(err, qt.IsNil)
	b, err := Hash(big.NewInt(1), big.NewInt(2), big.NewInt(3))
	c.Assert(err, qt.IsNil)
	c.Assert(a.Cmp(b), qt.Equals, 0)

	// order matters
	d, err := Hash(big.NewInt(3), big.NewInt(2), big.NewInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(a.Cmp(d), qt.Not(qt.Equals), 0)
}

func TestDomainSeparation(t *testing.T) {
	c := qt.New(t)

	sk := big.NewInt(77)
	rho := big.NewInt(88)

	vn, err := Nullifier(sk, rho)
	c.Assert(err, qt.IsNil)

	// the same preimage under another domain yields a different value
	other, err := Hash(DomainCommitment, sk, rho)
	c.Assert(err, qt.IsNil)
	c.Assert(vn.Cmp(other), qt.Not(qt.Equals), 0)
}

func TestCommitmentBindsEveryField(t *testing.T) {
	c := qt.New(t)

	base, err := Commitment(big.NewInt(1), big.NewInt(100), big.NewInt(5), big.NewInt(6), big.NewInt(7))
	c.Assert(err, qt.IsNil)

	variants := [][5]int64{
		{2, 100, 5, 6, 7},
		{1, 101, 5, 6, 7},
		{1, 100, 9, 6, 7},
		{1, 100, 5, 9, 7},
		{1, 100, 5, 6, 9},
	}
	for _, v := range variants {
		cm, err := Commitment(big.NewInt(v[0]), big.NewInt(v[1]), big.NewInt(v[2]), big.NewInt(v[3]), big.NewInt(v[4]))
		c.Assert(err, qt.IsNil)
		c.Assert(cm.Cmp(base), qt.Not(qt.Equals), 0)
	}
}

func TestDigestRoundTrip(t *testing.T) {
	c := qt.New(t)

	v, err := Hash(big.NewInt(42))
	c.Assert(err, qt.IsNil)
	d := Digest(v)
	c.Assert(d, qt.HasLen, 32)
	c.Assert(DigestToBigInt(d).Cmp(v), qt.Equals, 0)
}
