package sources

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// GitHubSource harvests seed URLs from repository markdown. The job filter
// is "owner/repo" or "owner/repo/path/to/file.md"; an empty filter falls
// back to the configured repository's README. A token is only needed for
// private repositories and higher rate limits.
type GitHubSource struct {
	cfg    *common.GitHubSourceConfig
	client *github.Client
	logger arbor.ILogger
}

var _ interfaces.SeedSource = (*GitHubSource)(nil)

func NewGitHubSource(cfg *common.GitHubSourceConfig, logger arbor.ILogger) *GitHubSource {
	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	return &GitHubSource{
		cfg:    cfg,
		client: github.NewClient(httpClient),
		logger: logger,
	}
}

func (s *GitHubSource) Type() models.SeedSourceType { return models.SeedSourceGitHub }

func (s *GitHubSource) Harvest(ctx context.Context, filter string) ([]string, error) {
	spec := filter
	if spec == "" {
		spec = s.cfg.Repo
	}
	if spec == "" {
		return nil, fmt.Errorf("no repository specified: set sources.github.repo or a job filter")
	}

	owner, repo, path, err := splitRepoSpec(spec)
	if err != nil {
		return nil, err
	}

	content, err := s.fileContent(ctx, owner, repo, path)
	if err != nil {
		return nil, err
	}

	urls := extractURLs(content)
	s.logger.Info().
		Str("repo", owner+"/"+repo).
		Int("urls", len(urls)).
		Msg("Repository harvest completed")
	return urls, nil
}

// fileContent fetches one repository file, defaulting to the README.
func (s *GitHubSource) fileContent(ctx context.Context, owner, repo, path string) (string, error) {
	if path == "" {
		readme, _, err := s.client.Repositories.GetReadme(ctx, owner, repo, nil)
		if err != nil {
			return "", fmt.Errorf("failed to get README for %s/%s: %w", owner, repo, err)
		}
		return decodeContent(readme)
	}

	content, _, _, err := s.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get %s from %s/%s: %w", path, owner, repo, err)
	}
	if content == nil {
		return "", fmt.Errorf("%s in %s/%s is not a file", path, owner, repo)
	}
	return decodeContent(content)
}

// splitRepoSpec parses "owner/repo[/path]".
func splitRepoSpec(spec string) (owner, repo, path string, err error) {
	parts := strings.SplitN(strings.Trim(spec, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("repository spec %q must be owner/repo[/path]", spec)
	}
	owner, repo = parts[0], parts[1]
	if len(parts) == 3 {
		path = parts[2]
	}
	return owner, repo, path, nil
}

func decodeContent(content *github.RepositoryContent) (string, error) {
	if content.Content == nil {
		return "", fmt.Errorf("empty file content")
	}
	decoded, err := base64.StdEncoding.DecodeString(*content.Content)
	if err != nil {
		return "", fmt.Errorf("failed to decode content: %w", err)
	}
	return string(decoded), nil
}
