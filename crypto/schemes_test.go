package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/kyber/util/random"

	"github.com/drand/stakedkg/crypto"
)

func TestNamesInList(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"", false},
		{crypto.DefaultSchemeID, true},
		{"nonexistentschemename", false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"IsInList", func(t *testing.T) {
			found := false
			for _, v := range crypto.ListSchemes() {
				if tt.name == v {
					found = true
				}
			}
			require.Equal(t, tt.expected, found)
		})
	}
}

func TestSchemeFromName(t *testing.T) {
	sch, err := crypto.GetSchemeByIDWithDefault("")
	require.NoError(t, err)
	require.Equal(t, crypto.DefaultSchemeID, sch.Name)
	require.Equal(t, crypto.DefaultSchemeID, sch.String())

	_, err = crypto.SchemeFromName("bls-unchained-on-g1")
	require.Error(t, err)

	t.Setenv("SCHEME_ID", crypto.DefaultSchemeID)
	sch, err = crypto.GetSchemeFromEnv()
	require.NoError(t, err)
	require.Equal(t, crypto.DefaultSchemeID, sch.Name)
}

func TestSchemePairingIsBilinear(t *testing.T) {
	sch := crypto.NewPVSSBLS12381Simple()
	a := sch.CommitGroup.Scalar().Pick(random.New())
	b := sch.CommitGroup.Scalar().Pick(random.New())

	aG := sch.CommitGroup.Point().Mul(a, nil)
	bH := sch.ShareGroup.Point().Mul(b, nil)
	left := sch.Pair(aG, bH)

	ab := sch.CommitGroup.Scalar().Mul(a, b)
	base := sch.Pair(sch.CommitGroup.Point().Base(), sch.ShareGroup.Point().Base())
	right := sch.TargetGroup.Point().Mul(ab, base)
	require.True(t, left.Equal(right))
}

func TestSchemeAuthOnShareGroupKeys(t *testing.T) {
	sch := crypto.NewPVSSBLS12381Simple()
	priv := sch.ShareGroup.Scalar().Pick(random.New())
	pub := sch.ShareGroup.Point().Mul(priv, nil)

	msg := []byte("validator identity")
	sig, err := sch.AuthScheme.Sign(priv, msg)
	require.NoError(t, err)
	require.NoError(t, sch.AuthScheme.Verify(pub, msg, sig))
	require.Error(t, sch.AuthScheme.Verify(pub, []byte("another identity"), sig))
}
