package judge

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/lucas6028/silver-server/types"
)

var (
	codeforcesProblemPattern = regexp.MustCompile(`(?i)codeforces\.com/(?:problemset/problem|contest)/(\d+)/(?:problem/)?([A-Z]\d?)`)
	codeforcesGymPattern     = regexp.MustCompile(`(?i)codeforces\.com/gym/(\d+)/problem/([A-Z]\d?)`)
)

// codeforcesTagTable maps Codeforces tags to the fixed tag vocabulary.
var codeforcesTagTable = map[string]string{
	"dp":                      "DP",
	"graphs":                  "Graph",
	"greedy":                  "Greedy",
	"math":                    "Math",
	"implementation":          "Impl",
	"strings":                 "Strings",
	"binary search":           "Binary Search",
	"interactive":             "Interactive",
	"bitmasks":                "Bitmasks",
	"constructive algorithms": "Constructive",
	"geometry":                "Geometry",
}

type codeforcesProblem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Tags      []string `json:"tags"`
	Rating    int      `json:"rating"`
}

func (c *Client) lookupCodeforces(ctx context.Context, url string) (Metadata, error) {
	contestID, index, isGym, err := parseCodeforcesURL(url)
	if err != nil {
		return Metadata{}, err
	}

	// contest.standings covers both regular contests and gyms.
	var payload struct {
		Status  string `json:"status"`
		Comment string `json:"comment"`
		Result  struct {
			Problems []codeforcesProblem `json:"problems"`
		} `json:"result"`
	}
	endpoint := fmt.Sprintf("%s/api/contest.standings?contestId=%s&from=1&count=1", c.codeforcesBase, contestID)
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return Metadata{}, err
	}
	if payload.Status != "OK" {
		return Metadata{}, fmt.Errorf("codeforces API error: %s", payload.Comment)
	}

	prefix := ""
	if isGym {
		prefix = "Gym "
	}

	for _, problem := range payload.Result.Problems {
		if problem.Index != index {
			continue
		}
		return Metadata{
			Title:      fmt.Sprintf("%s%s%s. %s", prefix, contestID, index, problem.Name),
			Platform:   "Codeforces",
			Difficulty: difficultyFromRating(problem.Rating),
			Tags:       mapTags(problem.Tags, codeforcesTagTable),
			URL:        url,
		}, nil
	}

	// Contest found but the index wasn't in it; keep a usable placeholder.
	return Metadata{
		Title:      fmt.Sprintf("%s%s%s. Problem", prefix, contestID, index),
		Platform:   "Codeforces",
		Difficulty: "Medium",
		URL:        url,
	}, nil
}

// UpcomingContests returns contests that have not started yet, soonest
// first.
func (c *Client) UpcomingContests(ctx context.Context) ([]types.Contest, error) {
	var payload struct {
		Status  string `json:"status"`
		Comment string `json:"comment"`
		Result  []struct {
			ID               int    `json:"id"`
			Name             string `json:"name"`
			Phase            string `json:"phase"`
			StartTimeSeconds int64  `json:"startTimeSeconds"`
			DurationSeconds  int64  `json:"durationSeconds"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, c.codeforcesBase+"/api/contest.list", &payload); err != nil {
		return nil, err
	}
	if payload.Status != "OK" {
		return nil, fmt.Errorf("codeforces API error: %s", payload.Comment)
	}

	now := time.Now()
	contests := make([]types.Contest, 0)
	for _, entry := range payload.Result {
		if entry.Phase != "BEFORE" {
			continue
		}
		contests = append(contests, types.Contest{
			ID:               entry.ID,
			Name:             entry.Name,
			Platform:         "Codeforces",
			StartTimeSeconds: entry.StartTimeSeconds,
			DurationSeconds:  entry.DurationSeconds,
			TimeUntil:        FormatTimeUntil(entry.StartTimeSeconds, now),
		})
	}
	sort.SliceStable(contests, func(i, j int) bool {
		return contests[i].StartTimeSeconds < contests[j].StartTimeSeconds
	})
	return contests, nil
}

func parseCodeforcesURL(url string) (contestID, index string, isGym bool, err error) {
	if match := codeforcesProblemPattern.FindStringSubmatch(url); match != nil {
		return match[1], match[2], false, nil
	}
	if match := codeforcesGymPattern.FindStringSubmatch(url); match != nil {
		return match[1], match[2], true, nil
	}
	return "", "", false, errors.New("no problem reference in url")
}

// difficultyFromRating buckets a Codeforces rating into Easy/Medium/Hard.
func difficultyFromRating(rating int) string {
	switch {
	case rating == 0:
		return "Medium"
	case rating < 1200:
		return "Easy"
	case rating >= 1600:
		return "Hard"
	default:
		return "Medium"
	}
}
