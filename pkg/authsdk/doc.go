/*
Package authsdk is the Go client for the TV guide service, and the home of
the wire types its HTTP handlers speak.

# SDKClient vs Session

SDKClient covers anonymous endpoints: registration, login, bootstrap,
health and the public catalog. Logging in returns a Session, which attaches
the bearer token to every call:

	client := authsdk.NewSDKClient("http://localhost:8080")

	_, err := client.Register(ctx, authsdk.RegisterRequest{Username: "alice", Password: "s3cretpass"})

	session, err := client.AuthenticateWithPassword(ctx, "alice", "s3cretpass")
	me, err := session.Me(ctx)

Admin sessions may manage the catalog:

	ch, err := admin.CreateChannel(ctx, authsdk.ChannelRequest{Name: "ABC", Country: "AU"})

Tokens are not refreshable. When Session.Expired reports true, log in again.

# Errors

Every failed call returns an *APIError carrying the HTTP status and the
service's error code. Compare against the predefined values with errors.Is:

	if errors.Is(err, authsdk.ErrUsernameTaken) {
		// pick another name
	}
*/
package authsdk
