package tap

import "errors"

// ErrVerification is the single generic failure [Verifier.Verify] reports
// for every cause: malformed p/c, unknown cid, a non-advancing counter, or
// a bad SDMMAC. Callers never learn which of (cid, counter, cmac) failed.
var ErrVerification = errors.New("tap verification failed")
