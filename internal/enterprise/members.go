// Package enterprise manages enterprise account membership.
package enterprise

import (
	"context"
	"fmt"
	"herokuPlugins/internal/api"
	"herokuPlugins/internal/apperror"
	"herokuPlugins/internal/ui"
	"io"
	"net/url"
	"strings"
)

// MemberPath is the API path of one member of an enterprise account.
func MemberPath(account, email string) string {
	return fmt.Sprintf("/enterprise-accounts/%s/members/%s", url.PathEscape(account), url.PathEscape(email))
}

// RemoveMember removes email from account, reporting progress on out.
func RemoveMember(ctx context.Context, client *api.Client, out io.Writer, account, email string) error {
	account = strings.TrimSpace(account)
	email = strings.TrimSpace(email)
	if account == "" {
		return apperror.New(apperror.ValidationError, "missing enterprise account, pass it with --enterprise-account", nil)
	}
	if email == "" {
		return apperror.New(apperror.ValidationError, "missing member email", nil)
	}

	styles := ui.NewStyles(out)
	message := fmt.Sprintf("Removing %s from %s", styles.Email.Render(email), styles.Account.Render(account))
	return ui.Action(ctx, out, message, ui.ActionOptions{}, func(ctx context.Context) error {
		return client.Delete(ctx, MemberPath(account, email))
	})
}
