package uniapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Group 学校目录中的学生组
type Group struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// Event 课表接口返回的单次课程
type Event struct {
	PairNumber       int    `json:"pairNumber"`
	Date             string `json:"date"`
	TimeBegin        string `json:"timeBegin"`
	TimeEnd          string `json:"timeEnd"`
	Title            string `json:"title"`
	TeacherName      string `json:"teacherName"`
	AuditoryTitle    string `json:"auditoryTitle"`
	AuditoryLocation string `json:"auditoryLocation"`
	Comment          string `json:"comment"`
}

type scheduleResponse struct {
	Events []Event `json:"events"`
}

// StatusError 上游返回非 2xx
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("请求 %s 返回 %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client 学校课表 REST API 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建客户端；timeout <= 0 时使用 15 秒
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListGroups GET /schedule/divisions/{id}/groups?course=n
func (c *Client) ListGroups(ctx context.Context, divisionID, course int) ([]Group, error) {
	q := url.Values{"course": {strconv.Itoa(course)}}
	var groups []Group
	if err := c.getJSON(ctx, fmt.Sprintf("/schedule/divisions/%d/groups", divisionID), q, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GetSchedule GET /schedule/groups/{id}/schedule?date_gte=&date_lte=，日期闭区间
func (c *Client) GetSchedule(ctx context.Context, groupID int, from, to time.Time) ([]Event, error) {
	q := url.Values{
		"date_gte": {from.Format(dateLayout)},
		"date_lte": {to.Format(dateLayout)},
	}
	var resp scheduleResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/schedule/groups/%d/schedule", groupID), q, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, URL: u, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", u, err)
	}
	return nil
}
