package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/mateconpizza/rotato"

	"github.com/vkhitrin/cosmicding-sub000/internal/config"
	"github.com/vkhitrin/cosmicding-sub000/internal/scraper"
	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
	"github.com/vkhitrin/cosmicding-sub000/pkg/db"
	"github.com/vkhitrin/cosmicding-sub000/pkg/favicon"
	"github.com/vkhitrin/cosmicding-sub000/pkg/linkding"
	"github.com/vkhitrin/cosmicding-sub000/pkg/provider"
	"github.com/vkhitrin/cosmicding-sub000/pkg/reconcile"
)

// app is the wired engine for one command invocation.
type app struct {
	store    *db.SQLite
	engine   *reconcile.Engine
	favicons *favicon.Cache

	mu sync.Mutex
	sp *rotato.Spinner
}

// insecureHosts returns the instance hostnames of remote accounts that
// trust invalid certificates.
func insecureHosts(as []*account.Account) []string {
	var hosts []string
	for _, a := range as {
		if !a.IsRemote() || !a.TrustInvalidCerts {
			continue
		}

		u, err := url.Parse(a.Instance)
		if err != nil || u.Hostname() == "" {
			continue
		}

		hosts = append(hosts, u.Hostname())
	}

	return hosts
}

// newApp opens the database and builds the engine from the loaded settings.
func newApp(ctx context.Context) (*app, error) {
	store, err := db.Open(ctx, config.App.Path.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	accounts, err := store.ListEnabledAccounts(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w", err)
	}

	a := &app{store: store}
	a.favicons = favicon.NewCache(
		store,
		favicon.NewHTTPFetcher(settings.HTTP.Timeout, insecureHosts(accounts)...),
		favicon.WithWorkers(settings.Favicons.Workers),
		favicon.WithRate(settings.Favicons.Rate),
	)

	providers := provider.Registry{
		account.ProviderLocal: provider.NewLocal(
			store,
			config.App.Version,
			provider.WithScraper(scraper.New(scraper.WithTimeout(settings.HTTP.Timeout))),
		),
		account.ProviderLinkding: provider.NewRemote(
			provider.LinkdingFactory(linkding.WithTimeout(settings.HTTP.Timeout)),
		),
	}

	session := reconcile.NewSession(store, settings.ItemsPerPage, settings.SortOrder())
	a.engine = reconcile.New(store, providers, session,
		reconcile.WithProgress(a.progress),
		reconcile.WithNotifier(a.notify),
		reconcile.WithFavicons(a.favicons),
		reconcile.WithStartupDelay(settings.StartupDelay),
	)

	return a, nil
}

// Close waits for background favicon fetches and closes the database.
func (a *app) Close() {
	a.stopSpinner("")
	a.favicons.Wait()
	a.store.Close()
}

func (a *app) startSpinner(mesg string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sp != nil || !isTerminal(os.Stderr) {
		return
	}

	a.sp = rotato.New(
		rotato.WithMesg(mesg),
		rotato.WithMesgColor(rotato.ColorBrightBlue),
		rotato.WithSpinnerColor(rotato.ColorGray),
		rotato.WithDoneColorMesg(rotato.ColorBrightGreen, rotato.ColorStyleItalic),
	)
	a.sp.Start()
}

func (a *app) stopSpinner(mesg string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sp == nil {
		if mesg != "" {
			fmt.Println(mesg)
		}

		return
	}

	if mesg == "" {
		a.sp.Done()
	} else {
		a.sp.Done(mesg)
	}
	a.sp = nil
}

func (a *app) progress(p reconcile.Progress) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sp == nil || p.Total == 0 {
		return
	}

	a.sp.UpdateMesg(fmt.Sprintf("[%d/%d] %s", p.Current, p.Total, p.Label))
}

func (a *app) notify(n reconcile.Notice) {
	switch n.Level {
	case reconcile.LevelAuth:
		fmt.Fprintf(os.Stderr, "auth: %s (run '%s account edit %d')\n", n, config.App.Cmd, n.AccountID)
	case reconcile.LevelError:
		fmt.Fprintf(os.Stderr, "error: %s\n", n)
	case reconcile.LevelWarn:
		fmt.Fprintf(os.Stderr, "warning: %s\n", n)
	default:
		fmt.Fprintln(os.Stderr, n)
	}
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
