package auth

// State is the controller's lifecycle state. Only the four mutating
// operations move between states; readers observe snapshots.
type State string

const (
	StateSignedOut      State = "signed_out"
	StateAuthenticating State = "authenticating"
	StateSignedIn       State = "signed_in"
	StateRefreshing     State = "refreshing"
)
