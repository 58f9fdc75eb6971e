// Package di contains dependency injection tokens for the custody context.
package di

import (
	"github.com/flowsniper/flowsniper/business/custody/app"
	"github.com/flowsniper/flowsniper/internal/di"
)

// Public service tokens - exposed to other modules
var (
	CustodyManager = di.NewToken[*app.CustodyManager]("custody.CustodyManager")
)

// Private dependency tokens - internal to custody module
var (
	KeyStore     = di.NewToken[app.KeyStore]("custody:keyStore")
	TokenCustody = di.NewToken[app.TokenCustody]("custody:tokenCustody")
)

// Helper functions for type-safe access
func GetCustodyManager(c di.ServiceRegistry) *app.CustodyManager {
	return di.GetToken(c, CustodyManager)
}

func GetKeyStore(c di.ServiceRegistry) app.KeyStore {
	return di.GetToken(c, KeyStore)
}

func GetTokenCustody(c di.ServiceRegistry) app.TokenCustody {
	return di.GetToken(c, TokenCustody)
}
