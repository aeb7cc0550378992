package models

// Identity is the rate-limit subject a request was resolved to.
// Key is "user_<id>" for authenticated callers and "ip_<address>" otherwise,
// so the two kinds never share a quota window.
type Identity struct {
	Key  string
	Tier Tier
	User *User
}

func UserIdentity(user *User) Identity {
	return Identity{
		Key:  "user_" + user.ID,
		Tier: user.Tier,
		User: user,
	}
}

func AnonymousIdentity(remoteAddr string) Identity {
	return Identity{
		Key:  "ip_" + remoteAddr,
		Tier: TierGuest,
	}
}

func (i Identity) Authenticated() bool {
	return i.User != nil
}
