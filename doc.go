// Package cryptkit is a unified cryptographic toolkit and secret-management
// library: symmetric envelope encryption (AES-256-GCM, ChaCha20-Poly1305),
// authenticated replay-protected nonces, a streaming compress/encrypt
// pipeline, post-quantum key encapsulation and signatures, and a local
// encrypted key/value vault sealable behind post-quantum "armor".
//
// Basic usage:
//
//	kit, err := cryptkit.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	v, err := kit.CreateVault(ctx, "vault.db", "correct horse battery staple")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer v.Close(ctx)
//
//	if err := v.Put(ctx, "secrets", "db-password", []byte("hunter2"), nil); err != nil {
//	    log.Fatal(err)
//	}
//
// The vault's on-disk file can be sealed behind post-quantum armor for
// cold storage or transport:
//
//	keyID, err := kit.GenerateArmorKey(ctx, "prod")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := v.Close(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := kit.SealVault(ctx, "vault.db", keyID); err != nil {
//	    log.Fatal(err)
//	}
package cryptkit
