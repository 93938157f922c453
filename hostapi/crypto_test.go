package hostapi

import (
	"regexp"
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	fns := surface(t, nil)
	e, ctx := newEnv(t)

	pwPtr, pwLen := put(t, e, "hunter2")
	stack := call(ctx, fns["env._crypto_hash_password"], pwPtr, pwLen)
	hash := readStr(t, e, stack[0])
	if !strings.HasPrefix(hash, "$2a$") {
		t.Fatalf("hash %q is not bcrypt", hash)
	}

	hashPtr, hashLen := put(t, e, hash)
	stack = call(ctx, fns["env._crypto_verify_password"], pwPtr, pwLen, hashPtr, hashLen)
	if stack[0] != 1 {
		t.Error("correct password did not verify")
	}

	wrongPtr, wrongLen := put(t, e, "hunter3")
	stack = call(ctx, fns["env._crypto_verify_password"], wrongPtr, wrongLen, hashPtr, hashLen)
	if stack[0] != 0 {
		t.Error("wrong password verified")
	}
}

// bcrypt rejects passwords over 72 bytes; the guest sees an empty hash, not
// a trap.
func TestPasswordHashingOverlongIsEmpty(t *testing.T) {
	fns := surface(t, nil)
	e, ctx := newEnv(t)

	pwPtr, pwLen := put(t, e, strings.Repeat("x", 80))
	stack := call(ctx, fns["env._crypto_hash_password"], pwPtr, pwLen)
	if got := readStr(t, e, stack[0]); got != "" {
		t.Errorf("overlong password produced hash %q", got)
	}
}

func TestDigests(t *testing.T) {
	fns := surface(t, nil)

	// Published FIPS 180 test vectors for "abc".
	t.Run("sha256", func(t *testing.T) {
		e, ctx := newEnv(t)
		inPtr, inLen := put(t, e, "abc")
		stack := call(ctx, fns["env._crypto_hash_sha256"], inPtr, inLen)
		want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
		if got := readStr(t, e, stack[0]); got != want {
			t.Errorf("sha256(abc) = %s", got)
		}
	})

	t.Run("sha512", func(t *testing.T) {
		e, ctx := newEnv(t)
		inPtr, inLen := put(t, e, "abc")
		stack := call(ctx, fns["env._crypto_hash_sha512"], inPtr, inLen)
		want := "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a" +
			"2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"
		if got := readStr(t, e, stack[0]); got != want {
			t.Errorf("sha512(abc) = %s", got)
		}
	})

	// RFC 4231 test case 2.
	t.Run("hmac", func(t *testing.T) {
		e, ctx := newEnv(t)
		keyPtr, keyLen := put(t, e, "Jefe")
		dataPtr, dataLen := put(t, e, "what do ya want for nothing?")
		stack := call(ctx, fns["env._crypto_hmac"], keyPtr, keyLen, dataPtr, dataLen)
		want := "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
		if got := readStr(t, e, stack[0]); got != want {
			t.Errorf("hmac = %s", got)
		}
	})
}

func TestRandomMaterial(t *testing.T) {
	fns := surface(t, nil)
	hexOnly := regexp.MustCompile(`^[0-9a-f]*$`)

	t.Run("random_bytes", func(t *testing.T) {
		e, ctx := newEnv(t)
		stack := call(ctx, fns["env._crypto_random_bytes"], 16)
		got := readStr(t, e, stack[0])
		if len(got) != 32 || !hexOnly.MatchString(got) {
			t.Errorf("random_bytes(16) = %q, want 32 hex chars", got)
		}

		stack = call(ctx, fns["env._crypto_random_bytes"], 16)
		if second := readStr(t, e, stack[0]); second == got {
			t.Error("two random draws were identical")
		}
	})

	t.Run("random_hex odd length", func(t *testing.T) {
		e, ctx := newEnv(t)
		stack := call(ctx, fns["env._crypto_random_hex"], 7)
		got := readStr(t, e, stack[0])
		if len(got) != 7 || !hexOnly.MatchString(got) {
			t.Errorf("random_hex(7) = %q, want exactly 7 hex chars", got)
		}
	})

	t.Run("bounds", func(t *testing.T) {
		e, ctx := newEnv(t)
		for _, n := range []uint64{0, i64(-5), randomHexCap + 1} {
			stack := call(ctx, fns["env._crypto_random_hex"], n)
			if got := readStr(t, e, stack[0]); got != "" {
				t.Errorf("random_hex(%d) = %q, want empty", int64(n), got)
			}
		}
	})
}
