// Package graphql dispatches GraphQL operations and manages the session tokens used
// to authorize them.
//
// Every Fetch or Upload computes the Authorization header first:
//   - a static access token configured with WithAccessToken always wins
//   - otherwise the stored access token is used while it has not expired
//   - an expired access token with a usable refresh token triggers one refresh
//     mutation; a rejected refresh logs the session out
//   - without usable tokens the request is sent as a guest, without the header
//
// The refresh mutation itself never carries an Authorization header.
//
// Login flows plug in through the Authenticator interface:
//
//	client, err := graphql.New("https://api.example.com/graphql",
//		graphql.WithStorage(store),
//	)
//	err = client.Authenticate(ctx, authenticator.Password{Email: email, Password: password})
//	resp, err := client.Fetch(ctx, `query { me { id } }`, nil)
//
// Responses are returned as sent by the server. GraphQL errors stay in
// Response.Errors and are not converted into Go errors.
package graphql
