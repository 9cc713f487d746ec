package bigdatacloud

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Client is the free BigDataCloud client-side reverse geocoder.
type Client struct {
	rc *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.bigdatacloud.net"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		rc: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

type reverseResponse struct {
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	PrincipalSubdivision string `json:"principalSubdivision"`
	CountryName          string `json:"countryName"`
}

func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	var out reverseResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":         strconv.FormatFloat(lat, 'f', -1, 64),
			"longitude":        strconv.FormatFloat(lon, 'f', -1, 64),
			"localityLanguage": "en",
		}).
		SetResult(&out).
		Get("/data/reverse-geocode-client")
	if err != nil {
		return "", errors.Wrap(models.ErrGeocodeUnavailable, err.Error())
	}
	if resp.IsError() {
		return "", errors.Wrap(models.ErrGeocodeUnavailable, fmt.Sprintf("http %d", resp.StatusCode()))
	}

	for _, v := range []string{out.City, out.Locality, out.PrincipalSubdivision} {
		if v != "" {
			return v, nil
		}
	}
	return "", errors.Wrap(models.ErrGeocodeUnavailable, "empty address")
}
