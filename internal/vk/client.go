package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jkeevk/VKinder/internal/config"
)

// Client talks to the VK HTTP API. Group-scoped calls (messaging,
// long poll) use the group token; profile search and photo lookup
// require the user token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string
	groupToken string
	userToken  string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.VK.APIBase, "/"),
		version:    cfg.VK.Version,
		groupToken: cfg.VK.GroupToken,
		userToken:  cfg.VK.UserToken,
	}
}

// call performs one VK API method call. All requests go through here
// so error payloads are handled in a single place.
func (c *Client) call(ctx context.Context, token, method string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)
	params.Set("v", c.version)

	reqURL := fmt.Sprintf("%s/method/%s?%s", c.baseURL, method, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", method, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("call %s: http %d: %s", method, resp.StatusCode, body)
	}

	var envelope struct {
		Error    *APIError       `json:"error"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("call %s: %w", method, envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Response, out); err != nil {
			return fmt.Errorf("decode %s payload: %w", method, err)
		}
	}
	return nil
}

// LookupProfile fetches sex, age and city for one user.
func (c *Client) LookupProfile(ctx context.Context, userID int64) (Profile, error) {
	params := url.Values{}
	params.Set("user_ids", strconv.FormatInt(userID, 10))
	params.Set("fields", "sex,bdate,city")

	var users []struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Sex       int    `json:"sex"`
		BDate     string `json:"bdate"`
		City      *struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"city"`
	}
	if err := c.call(ctx, c.groupToken, "users.get", params, &users); err != nil {
		return Profile{}, err
	}
	if len(users) == 0 {
		return Profile{}, fmt.Errorf("users.get: user %d not found", userID)
	}

	u := users[0]
	p := Profile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Sex:       u.Sex,
		Age:       ageFromBDate(u.BDate, time.Now()),
	}
	if u.City != nil {
		p.CityID = u.City.ID
	}
	return p, nil
}

// SearchCandidates runs one users.search and returns the candidate ids.
// Closed profiles are skipped since their photos cannot be fetched.
func (c *Client) SearchCandidates(ctx context.Context, sex, ageMin, ageMax int, cityID int64, count int) ([]int64, error) {
	params := url.Values{}
	params.Set("sex", strconv.Itoa(sex))
	params.Set("age_from", strconv.Itoa(ageMin))
	params.Set("age_to", strconv.Itoa(ageMax))
	params.Set("city", strconv.FormatInt(cityID, 10))
	params.Set("count", strconv.Itoa(count))
	params.Set("has_photo", "1")

	var result struct {
		Count int `json:"count"`
		Items []struct {
			ID       int64 `json:"id"`
			IsClosed bool  `json:"is_closed"`
		} `json:"items"`
	}
	if err := c.call(ctx, c.userToken, "users.search", params, &result); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(result.Items))
	for _, item := range result.Items {
		if item.IsClosed {
			continue
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// LookupPhotos fetches the profile album of a candidate with like counts.
func (c *Client) LookupPhotos(ctx context.Context, ownerID int64) ([]Photo, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(ownerID, 10))
	params.Set("album_id", "profile")
	params.Set("extended", "1")

	var result struct {
		Items []struct {
			ID      int64 `json:"id"`
			OwnerID int64 `json:"owner_id"`
			Likes   struct {
				Count int `json:"count"`
			} `json:"likes"`
			Sizes []struct {
				URL string `json:"url"`
			} `json:"sizes"`
		} `json:"items"`
	}
	if err := c.call(ctx, c.userToken, "photos.get", params, &result); err != nil {
		return nil, err
	}

	photos := make([]Photo, 0, len(result.Items))
	for _, item := range result.Items {
		p := Photo{ID: item.ID, OwnerID: item.OwnerID, Likes: item.Likes.Count}
		if n := len(item.Sizes); n > 0 {
			// last size is the largest one
			p.URL = item.Sizes[n-1].URL
		}
		photos = append(photos, p)
	}
	return photos, nil
}

// ResolveCityByName resolves a free-text city name to a VK city
// reference. The second return value is false when nothing matched.
func (c *Client) ResolveCityByName(ctx context.Context, name string) (City, bool, error) {
	params := url.Values{}
	params.Set("q", name)
	params.Set("count", "1")

	var result struct {
		Items []City `json:"items"`
	}
	if err := c.call(ctx, c.userToken, "database.getCities", params, &result); err != nil {
		return City{}, false, err
	}
	if len(result.Items) == 0 {
		return City{}, false, nil
	}
	return result.Items[0], true, nil
}

// SendMessage delivers one outbound message. Keyboard and attachment
// are optional serialized VK payloads.
func (c *Client) SendMessage(ctx context.Context, userID int64, text, keyboard, attachment string) error {
	params := url.Values{}
	params.Set("user_id", strconv.FormatInt(userID, 10))
	params.Set("message", text)
	params.Set("random_id", strconv.FormatInt(rand.Int63(), 10))
	if keyboard != "" {
		params.Set("keyboard", keyboard)
	}
	if attachment != "" {
		params.Set("attachment", attachment)
	}
	return c.call(ctx, c.groupToken, "messages.send", params, nil)
}

// ageFromBDate derives an age from a VK birth date ("D.M.YYYY").
// Dates without a year ("D.M") yield 0.
func ageFromBDate(bdate string, now time.Time) int {
	parts := strings.Split(bdate, ".")
	if len(parts) != 3 {
		return 0
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}

	age := now.Year() - year
	birthday := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
	if now.Before(birthday) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
