package decksource

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/tarottimer/internal/deck"
	"github.com/conorfennell/tarottimer/internal/domain"
	"github.com/conorfennell/tarottimer/internal/gitsource"
	"github.com/conorfennell/tarottimer/internal/parser"
)

//go:embed decks/rider-waite.md
var builtinDeck []byte

// Builtin names the embedded reference deck.
const Builtin = "builtin:rider-waite"

// Options controls where the reference deck is loaded from.
type Options struct {
	// Source is a deck file, a directory of deck files, or a git URL.
	// Empty selects the embedded deck.
	Source string
	// ReposDir is where git sources are cloned.
	ReposDir string
	Logger   *slog.Logger
}

// cardRules mirrors domain.Card for struct-tag validation.
type cardRules struct {
	ID       int    `validate:"gte=0"`
	Name     string `validate:"required"`
	Arcana   string `validate:"oneof=major minor"`
	Suit     string `validate:"required_if=Arcana minor,excluded_if=Arcana major,omitempty,oneof=wands cups swords pentacles"`
	Number   int    `validate:"gte=0,lte=21"`
	Upright  string `validate:"required"`
	Reversed string
}

// Load reads, validates, and indexes the reference deck.
func Load(ctx context.Context, opts Options) (*deck.Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		cards []domain.Card
		err   error
	)
	switch {
	case opts.Source == "" || opts.Source == Builtin:
		cards, err = parser.Parse(bytes.NewReader(builtinDeck))
	case isGitURL(opts.Source):
		var localPath string
		localPath, err = gitURLToLocalPath(opts.ReposDir, opts.Source)
		if err != nil {
			return nil, err
		}
		res, syncErr := gitsource.Sync(ctx, logger, opts.Source, localPath)
		if syncErr != nil {
			return nil, syncErr
		}
		logger.Debug("deck source revision", "source", opts.Source, "head", res.Head, "action", string(res.Action))
		cards, err = loadPath(localPath)
	default:
		cards, err = loadPath(opts.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("load deck %s: %w", describe(opts.Source), err)
	}

	if err := Validate(cards); err != nil {
		return nil, fmt.Errorf("invalid deck %s: %w", describe(opts.Source), err)
	}

	table, err := deck.NewTable(cards)
	if err != nil {
		return nil, fmt.Errorf("invalid deck %s: %w", describe(opts.Source), err)
	}
	logger.Info("deck loaded", "source", describe(opts.Source), "cards", table.Len(), "hash", table.Hash())
	return table, nil
}

// Validate checks every card against the deck table rules.
func Validate(cards []domain.Card) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	var errs []error
	for _, c := range cards {
		rules := cardRules{
			ID:       c.ID,
			Name:     c.Names[domain.DefaultLocale],
			Arcana:   string(c.Arcana),
			Suit:     c.Suit,
			Number:   c.Number,
			Upright:  c.Upright,
			Reversed: c.Reversed,
		}
		if err := validate.Struct(rules); err != nil {
			errs = append(errs, fmt.Errorf("card %d: %w", c.ID, err))
		}
	}
	return errors.Join(errs...)
}

// loadPath parses a single deck file or every .md file under a directory,
// in lexical order so the source deck order is stable.
func loadPath(path string) ([]domain.Card, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return parser.ParseFile(path)
	}

	var cards []domain.Card
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			fileCards, parseErr := parser.ParseFile(p)
			if parseErr != nil {
				return fmt.Errorf("parsing %s: %w", p, parseErr)
			}
			cards = append(cards, fileCards...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

func describe(source string) string {
	if source == "" {
		return Builtin
	}
	return source
}

func isGitURL(source string) bool {
	return strings.HasSuffix(source, ".git") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://")
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
