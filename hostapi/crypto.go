package hostapi

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"

	"github.com/tetratelabs/wazero/api"
	"golang.org/x/crypto/bcrypt"
)

// randomHexCap bounds guest-requested random material, in bytes.
const randomHexCap = 65536

// Password hashing rides on bcrypt at the default cost; digests and MACs
// come out lowercase hex. Failures degrade to "" or false: a guest that
// feeds bcrypt a 73-byte password gets an empty hash, not a dead request.
func bindCrypto(b *binder) {
	b.fn(wireEnv, "_crypto_hash_password", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		hash, err := bcrypt.GenerateFromPassword([]byte(e.str(stack, 0)), bcrypt.DefaultCost)
		if err != nil {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(string(hash))
	}))

	b.fn(wireEnv, "_crypto_verify_password", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		err := bcrypt.CompareHashAndPassword([]byte(e.str(stack, 2)), []byte(e.str(stack, 0)))
		stack[0] = boolWord(err == nil)
	}))

	b.fn(wireEnv, "_crypto_hash_sha256", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		sum := sha256.Sum256([]byte(e.str(stack, 0)))
		stack[0] = e.out(hex.EncodeToString(sum[:]))
	}))

	b.fn(wireEnv, "_crypto_hash_sha512", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		sum := sha512.Sum512([]byte(e.str(stack, 0)))
		stack[0] = e.out(hex.EncodeToString(sum[:]))
	}))

	b.fn(wireEnv, "_crypto_hmac", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		mac := hmac.New(sha256.New, []byte(e.str(stack, 0)))
		mac.Write([]byte(e.str(stack, 2)))
		stack[0] = e.out(hex.EncodeToString(mac.Sum(nil)))
	}))

	b.fn(wireEnv, "_crypto_random_bytes", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		n := int64(stack[0])
		if n <= 0 || n > randomHexCap {
			stack[0] = e.out("")
			return
		}
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(hex.EncodeToString(buf))
	}))

	b.fn(wireEnv, "_crypto_random_hex", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		n := int64(stack[0])
		if n <= 0 || n > randomHexCap {
			stack[0] = e.out("")
			return
		}
		buf := make([]byte, (n+1)/2)
		if _, err := rand.Read(buf); err != nil {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(hex.EncodeToString(buf)[:n])
	}))
}
