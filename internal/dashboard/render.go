package dashboard

import (
	"fmt"
	"herokuPlugins/internal/models"
	"herokuPlugins/internal/ui"
	"io"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const managedOwnerDomain = "@herokumanager.com"

// Options control Render.
type Options struct {
	// Now anchors "Last release" times. Zero means time.Now().
	Now time.Time
	// GOOS disables the sparkline on windows. Empty means runtime.GOOS.
	GOOS string
}

// Render prints data to out. The no-favorites warning goes to errOut.
func Render(out, errOut io.Writer, data *Data, opts Options) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	r := &renderer{w: out, s: ui.NewStyles(out), opts: opts}

	if len(data.Favorites) > 0 {
		for _, app := range data.Apps {
			r.app(app)
		}
	} else {
		warn := ui.NewStyles(errOut)
		fmt.Fprintf(errOut, "%s Add apps to this dashboard by favoriting them with %s\n",
			warn.Warning.Render("Warning:"), warn.Cmd.Render("heroku apps:favorites:add"))
	}

	r.printf("See all add-ons with %s\n", r.s.Cmd.Render("heroku addons"))
	if org, ok := sampleOrg(data.Orgs); ok {
		r.printf("See all apps in %s with %s\n",
			r.s.Notice.Render(org.Name), r.s.Cmd.Render("heroku apps --org "+org.Name))
	}
	r.printf("See all apps with %s\n", r.s.Cmd.Render("heroku apps --all"))

	if unread := unreadCount(data.Notifications); unread > 0 {
		r.printf("\nYou have %s unread notifications. Read them with %s\n",
			r.s.Warning.Render(strconv.Itoa(unread)), r.s.Cmd.Render("heroku notifications"))
	}
	r.printf("\nSee other CLI commands with %s\n\n", r.s.Cmd.Render("heroku help"))
}

type renderer struct {
	w    io.Writer
	s    ui.Styles
	opts Options
}

func (r *renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *renderer) line(label, value string) {
	r.printf("  %s %s\n", r.s.Label.Render(label), value)
}

func (r *renderer) app(app models.DashboardApp) {
	r.printf("%s\n", r.s.App.Render(app.App.Name))
	r.line("Owner:", ownerName(app.App.Owner.Email))
	if app.Pipeline != nil {
		r.line("Pipeline:", app.Pipeline.Pipeline.Name)
	}
	r.line("Dynos:", r.formation(app.Formation))
	r.line("Last release:", humanize.RelTime(app.App.ReleasedAt, r.opts.Now, "ago", "from now"))
	if metrics := r.metrics(app.Metrics); metrics != "" {
		r.line("Metrics:", metrics)
	}
	if errs := r.errors(app.Metrics); errs != "" {
		r.line("Errors:", errs)
	}
	r.printf("\n")
}

func ownerName(email string) string {
	if strings.HasSuffix(email, managedOwnerDomain) {
		return strings.TrimSuffix(email, managedOwnerDomain)
	}
	return email
}

// formation groups process types by dyno size, in order of first appearance.
func (r *renderer) formation(formation []models.Formation) string {
	var sizes []string
	quantity := map[string]int{}
	for _, proc := range formation {
		if _, ok := quantity[proc.Size]; !ok {
			sizes = append(sizes, proc.Size)
		}
		quantity[proc.Size] += proc.Quantity
	}

	parts := make([]string, len(sizes))
	for i, size := range sizes {
		parts[i] = fmt.Sprintf("%s | %s", r.s.Bold.Render(strconv.Itoa(quantity[size])), size)
	}
	return strings.Join(parts, ", ")
}

func (r *renderer) metrics(m models.AppMetrics) string {
	var ms, rpm string
	if !m.RouterLatency.Empty() {
		if p50, ok := m.RouterLatency.Data["latency_p50"]; ok && len(p50) > 0 {
			ms = padCenter(fmt.Sprintf("%d ms", round(mean(p50))), 6)
		}
	}
	if !m.RouterStatus.Empty() {
		var total float64
		for _, values := range m.RouterStatus.Data {
			total += sum(values)
		}
		rpm = fmt.Sprintf("%d rpm", round(total/24/60))
		if r.opts.GOOS != "windows" {
			points := bucketSums(m.RouterStatus.Data, 3)
			if len(points) > 0 {
				points = points[:len(points)-1]
			}
			rpm += " " + r.s.Dim.Render(sparkline(points)) + " last 24 hours rpm"
		}
	}
	return ms + rpm
}

// errors lists router errors, then dyno errors, each sorted by code.
func (r *renderer) errors(m models.AppMetrics) string {
	var parts []string
	add := func(s *models.Series) {
		if s.Empty() {
			return
		}
		codes := make([]string, 0, len(s.Data))
		for code := range s.Data {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			parts = append(parts, r.s.Error.Render(formatNumber(sum(s.Data[code]))+" "+code))
		}
	}

	add(m.RouterErrors)
	for _, s := range m.DynoErrors {
		add(s)
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("%s (see details with %s)",
		strings.Join(parts, r.s.Dim.Render(", ")), r.s.Cmd.Render("heroku apps:errors"))
}

// sampleOrg returns the oldest organization the user is not just a
// collaborator of.
func sampleOrg(orgs []models.Organization) (models.Organization, bool) {
	var candidates []models.Organization
	for _, org := range orgs {
		if org.Role != "collaborator" {
			candidates = append(candidates, org)
		}
	}
	if len(candidates) == 0 {
		return models.Organization{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0], true
}

func unreadCount(notifications []models.Notification) int {
	n := 0
	for _, notification := range notifications {
		if !notification.Read {
			n++
		}
	}
	return n
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// round rounds half up.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// padCenter pads s with spaces on both sides to width, favoring the right.
func padCenter(s string, width int) string {
	n := width - len(s)
	if n <= 0 {
		return s
	}
	left := n / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", n-left)
}
