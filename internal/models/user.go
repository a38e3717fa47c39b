package models

// User is the authenticated player's profile. Balance is in minor currency units.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Balance       int64  `json:"balance"`
	Admin         bool   `json:"admin"`
	ReferralCode  string `json:"referral_code"`
	CanClaimDaily bool   `json:"can_claim_daily"`
	AvatarURL     string `json:"avatar_url,omitempty"`
}

// UserPatch carries the fields of a partial profile update. Nil fields are left untouched.
type UserPatch struct {
	Username      *string `json:"username,omitempty"`
	Email         *string `json:"email,omitempty"`
	Balance       *int64  `json:"balance,omitempty"`
	Admin         *bool   `json:"admin,omitempty"`
	ReferralCode  *string `json:"referral_code,omitempty"`
	CanClaimDaily *bool   `json:"can_claim_daily,omitempty"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
}

// Apply shallow-merges the patch into u.
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Balance != nil {
		u.Balance = *p.Balance
	}
	if p.Admin != nil {
		u.Admin = *p.Admin
	}
	if p.ReferralCode != nil {
		u.ReferralCode = *p.ReferralCode
	}
	if p.CanClaimDaily != nil {
		u.CanClaimDaily = *p.CanClaimDaily
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
