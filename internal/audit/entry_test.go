package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorDisplayIdentity(t *testing.T) {
	var none *Actor
	require.Equal(t, "", none.DisplayIdentity())
	require.Equal(t, "", (&Actor{}).DisplayIdentity())
	require.Equal(t, "17", (&Actor{UserID: 17}).DisplayIdentity())
	require.Equal(t, "partner@firm.test", (&Actor{UserID: 17, Email: "partner@firm.test"}).DisplayIdentity())
}

func TestFailedLogin(t *testing.T) {
	unauthorized, ok := 401, 200
	require.True(t, Entry{Action: ActionLogin, StatusCode: &unauthorized}.FailedLogin())
	require.False(t, Entry{Action: ActionLogin, StatusCode: &ok}.FailedLogin())
	require.False(t, Entry{Action: ActionLogin}.FailedLogin())
	require.False(t, Entry{Action: ActionRead, StatusCode: &unauthorized}.FailedLogin())
}

func TestActionValid(t *testing.T) {
	for _, a := range Actions() {
		require.True(t, a.Valid(), a)
	}
	require.False(t, Action("teleport").Valid())
	require.False(t, Action("").Valid())
}
