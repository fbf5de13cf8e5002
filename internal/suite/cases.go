package suite

import (
	"context"
	"errors"
	"strings"

	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/internal/session"
)

// maxPopupRounds bounds the announcement dialogs dismissed after a page load
const maxPopupRounds = 5

// HomeCase opens the public site and checks it rendered
func HomeCase() Case {
	return Case{
		Name:        "home",
		Description: "Open the base URL, dismiss popups and check the page title",
		Run:         runHome,
	}
}

// LoginCase signs in with the environment credentials and waits for the dashboard
func LoginCase() Case {
	return Case{
		Name:        "login",
		Description: "Sign in through the login form and wait for the dashboard",
		Run:         runLogin,
	}
}

func navigate(ctx context.Context, s *session.Session, name, url string) error {
	return s.Measure(ctx, name, func(ctx context.Context) error {
		return s.Retry(ctx, name, func(ctx context.Context) error {
			return s.Page.Navigate(ctx, url)
		})
	})
}

func runHome(ctx context.Context, s *session.Session) error {
	s.Log.Info("Phase 1: navigate to home page")
	if err := navigate(ctx, s, "navigate home", s.Config.Target.BaseURL); err != nil {
		return err
	}

	s.Log.Info("Phase 2: dismiss popups")
	s.Steps.DismissPopups(ctx, s.Page, s.Config.Target.Popups, maxPopupRounds)

	s.Log.Info("Phase 3: verify page")
	title, err := s.Page.Title(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(title) == "" {
		return errors.New("home page has an empty title")
	}
	s.Log.WithField("title", title).Info("Home page loaded")
	return nil
}

func runLogin(ctx context.Context, s *session.Session) error {
	if !s.Credentials.Valid() {
		return config.ErrMissingCredentials
	}

	s.Log.Info("Phase 1: open login page")
	if err := navigate(ctx, s, "navigate login", s.Config.Target.LoginURL); err != nil {
		return err
	}

	s.Log.Info("Phase 2: fill credentials")
	fill := func(element, value string) error {
		return s.Retry(ctx, "fill "+element, func(ctx context.Context) error {
			el, err := s.Find(ctx, element)
			if err != nil {
				return err
			}
			return el.Fill(ctx, value)
		})
	}
	if err := fill(config.ElementUsername, s.Credentials.Username); err != nil {
		return err
	}
	if err := fill(config.ElementPassword, s.Credentials.Password); err != nil {
		return err
	}

	s.Log.Info("Phase 3: submit and wait for dashboard")
	return s.Measure(ctx, "login", func(ctx context.Context) error {
		err := s.Retry(ctx, "submit login", func(ctx context.Context) error {
			el, err := s.Find(ctx, config.ElementSubmit)
			if err != nil {
				return err
			}
			return el.Click(ctx)
		})
		if err != nil {
			return err
		}

		s.Steps.DismissPopups(ctx, s.Page, s.Config.Target.Popups, maxPopupRounds)

		return s.Retry(ctx, "wait for dashboard", func(ctx context.Context) error {
			_, err := s.Find(ctx, config.ElementLoggedIn)
			return err
		})
	})
}
