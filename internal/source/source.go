package source

import (
	"errors"
	"net/url"
	"regexp"
)

// 安康市政府门户栏目页的公共前缀，相对链接均以此为基准解析
const rootURL = "https://www.ankang.gov.cn/Node-"

// ErrInvalidParameter 表示调用方传入了无法识别的栏目标识，属于终止性错误，不应重试
var ErrInvalidParameter = errors.New("invalid parameter")

// InvalidParameterError 携带诊断信息，errors.Is(err, ErrInvalidParameter) 为 true
type InvalidParameterError struct {
	Param string
	Msg   string
}

func (e *InvalidParameterError) Error() string {
	return "invalid parameter " + e.Param + ": " + e.Msg
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }

// Kind 区分两种抽取策略
type Kind int

const (
	KindListScrape Kind = iota // 直接解析 HTML 列表页
	KindAPIEnrich              // JSON 列表 + 逐条抓取全文
)

func (k Kind) String() string {
	switch k {
	case KindListScrape:
		return "list_scrape"
	case KindAPIEnrich:
		return "api_enrich"
	default:
		return "unknown"
	}
}

// Strategy 是解析阶段就确定下来的抽取方式，URL 为该策略读取的地址
type Strategy struct {
	Kind Kind
	URL  string
}

// Descriptor 栏目解析结果，值类型，构造后不再修改
type Descriptor struct {
	ID       string
	Title    string
	Link     string // 栏目列表页
	BaseURL  string // 相对链接的解析基准
	Strategy Strategy
}

// NewListScrape 构造直接抓取列表页的栏目
func NewListScrape(id, title, listingURL, baseURL string) Descriptor {
	return Descriptor{
		ID:       id,
		Title:    title,
		Link:     listingURL,
		BaseURL:  baseURL,
		Strategy: Strategy{Kind: KindListScrape, URL: listingURL},
	}
}

// NewAPIEnrich 构造通过 JSON 接口取列表、再逐条补全正文的栏目
func NewAPIEnrich(id, title, listingURL, apiURL, baseURL string) Descriptor {
	return Descriptor{
		ID:       id,
		Title:    title,
		Link:     listingURL,
		BaseURL:  baseURL,
		Strategy: Strategy{Kind: KindAPIEnrich, URL: apiURL},
	}
}

// Column 栏目元数据，供栏目索引接口展示
type Column struct {
	UID     string   `json:"uid"`
	Aliases []string `json:"aliases"`
	Name    string   `json:"name"`
}

type column struct {
	Column
	desc Descriptor
}

// 目前所有栏目都没有 JSON 接口，只走列表页抓取
var columns = []column{
	{
		Column: Column{UID: "1466", Aliases: []string{"akyw", "news", "1466"}, Name: "安康要闻"},
		desc:   NewListScrape("1466", "安康市政府 - 安康要闻", rootURL+"1466.html", rootURL),
	},
	{
		Column: Column{UID: "866", Aliases: []string{"866", "district"}, Name: "县市区新闻"},
		desc:   NewListScrape("866", "安康市政府 - 县市区要闻", rootURL+"866.html", rootURL),
	},
	{
		Column: Column{UID: "916", Aliases: []string{"916", "shiquan"}, Name: "石泉新闻"},
		desc:   NewListScrape("916", "安康市政府 - 石泉县要闻", rootURL+"916.html", rootURL),
	},
}

var aliasIndex = func() map[string]int {
	m := make(map[string]int)
	for i, c := range columns {
		for _, a := range c.Aliases {
			m[a] = i
		}
	}
	return m
}()

// Resolve 按别名（区分大小写）查找栏目，未命中返回 *InvalidParameterError
func Resolve(id string) (Descriptor, error) {
	i, ok := aliasIndex[id]
	if !ok {
		return Descriptor{}, &InvalidParameterError{Param: "uid", Msg: "pattern not matched"}
	}
	return columns[i].desc, nil
}

// Columns 返回全部栏目，顺序与门户展示一致
func Columns() []Column {
	out := make([]Column, 0, len(columns))
	for _, c := range columns {
		cc := c.Column
		cc.Aliases = append([]string(nil), c.Aliases...)
		out = append(out, cc)
	}
	return out
}

// Descriptors 返回全部栏目的解析结果，供定时归档使用
func Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(columns))
	for _, c := range columns {
		out = append(out, c.desc)
	}
	return out
}

var nodePagePattern = regexp.MustCompile(`^/Node-(\d+)\.html$`)

// FromPageURL 将门户栏目页地址（www.ankang.gov.cn/Node-:uid.html）映射为可解析的 uid
func FromPageURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host != "www.ankang.gov.cn" {
		return "", false
	}
	m := nodePagePattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	if _, ok := aliasIndex[m[1]]; !ok {
		return "", false
	}
	return m[1], true
}
