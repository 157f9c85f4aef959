package email

import (
	"fmt"
	"html/template"
	"strings"
)

// claimTmpl is the claim-account email sent when a subscription purchase
// provisions a new reader profile. Kept as a plain html/template because the
// site's page rendering stack is a separate concern from transactional mail.
var claimTmpl = template.Must(template.New("claim").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; color: #1a1a1a; max-width: 560px; margin: 0 auto;">
	<h2>Your subscription is active</h2>
	<p>Thanks for subscribing. We created a reader account for
	<strong>{{.Email}}</strong> so your issues and digital extras are waiting
	for you.</p>
	<p>Set a password to claim it:</p>
	<p><a href="{{.ClaimURL}}" style="display:inline-block;padding:10px 18px;background:#1a1a1a;color:#ffffff;text-decoration:none;">Claim your account</a></p>
	<p>If the button does not work, open this link:<br>{{.ClaimURL}}</p>
</body>
</html>`))

// RenderClaimEmail builds the claim-account email body for a provisioned profile.
func RenderClaimEmail(emailAddr, claimURL string) (SendParams, error) {
	var sb strings.Builder
	err := claimTmpl.Execute(&sb, struct {
		Email    string
		ClaimURL string
	}{Email: emailAddr, ClaimURL: claimURL})
	if err != nil {
		return SendParams{}, fmt.Errorf("render claim email: %w", err)
	}

	return SendParams{
		SendTo:   emailAddr,
		Subject:  "Claim your reader account",
		BodyHTML: sb.String(),
		Tag:      "claim-account",
	}, nil
}
