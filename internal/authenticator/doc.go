// Package authenticator provides login strategies that produce an initial
// graphql.AuthTokenSet for graphql.Client.Authenticate.
//
// Use Password for email/password login:
//
//	err := client.Authenticate(ctx, authenticator.Password{
//		Email:    "ada@example.com",
//		Password: password,
//	})
//
// Use EnvRefreshToken to bootstrap a session from a refresh token provisioned
// by external secret management:
//
//	a, err := authenticator.NewEnvRefreshToken("APP_REFRESH_TOKEN")
//	err = client.Authenticate(ctx, a)
package authenticator
