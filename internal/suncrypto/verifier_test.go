package suncrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testK1  = "00112233445566778899aabbccddeeff"
	testK2  = "ffeeddccbbaa99887766554433221100"
	testCid = "f0da000000001a"
)

func TestGeneratePCVerifyRoundTrip(t *testing.T) {
	p, c, err := GeneratePC(testK1, testK2, testCid, 7)
	require.NoError(t, err)

	result, err := Verify(p, c, testK1, testK2, 5)
	require.NoError(t, err)
	require.Equal(t, testCid, result.Cid)
	require.EqualValues(t, 7, result.NewCtr)
}

func TestVerifyRejectsNonAdvancingCounter(t *testing.T) {
	p, c, err := GeneratePC(testK1, testK2, testCid, 5)
	require.NoError(t, err)

	_, err = Verify(p, c, testK1, testK2, 5)
	require.ErrorIs(t, err, ErrCounterNotAdvancing)

	_, err = Verify(p, c, testK1, testK2, 9)
	require.ErrorIs(t, err, ErrCounterNotAdvancing)
}

func TestVerifyRejectsBadShape(t *testing.T) {
	_, err := Verify("not-hex", "B0F686A9F3930E42", testK1, testK2, 0)
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Verify("EF868CC472EE41D6036984D71CD70D92", "short", testK1, testK2, 0)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerifyRejectsTamperedMAC(t *testing.T) {
	p, c, err := GeneratePC(testK1, testK2, testCid, 3)
	require.NoError(t, err)

	tampered := []byte(c)
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}

	_, err = Verify(p, string(tampered), testK1, testK2, 0)
	require.ErrorIs(t, err, ErrMACMismatch)
}
