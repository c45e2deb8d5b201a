package sanitizer

import (
	"regexp"
	"strings"
)

var (
	ibbDomainRe = regexp.MustCompile(`i\.ibb\.co\.com`)
	doubleComRe = regexp.MustCompile(`(\.com)+\.com`)
	dupSlashRe  = regexp.MustCompile(`//+`)
)

// Sanitize 把格式错误或过时的图片地址整理为规范形式。
// 纯函数，对任何输入都有结果；空字符串原样返回。重复调用结果不变。
func Sanitize(url string) string {
	if url == "" {
		return url
	}

	// 1. 去掉 # 之后的片段
	if i := strings.IndexByte(url, '#'); i >= 0 {
		url = url[:i]
	}
	// 2. 去掉首尾空白
	url = strings.TrimSpace(url)
	// 3. i.ibb.co.com -> i.ibb.co; 4. .com.com -> .com
	// 两条规则互相可能产生新的匹配，反复执行直到不再变化
	for {
		next := ibbDomainRe.ReplaceAllString(doubleComRe.ReplaceAllString(url, ".com"), "i.ibb.co")
		if next == url {
			break
		}
		url = next
	}
	// 5. 合并重复斜杠
	url = collapseSlashes(url)
	// 6. 补全或升级为 https
	switch {
	case strings.HasPrefix(url, "//"):
		url = "https:" + url
	case strings.HasPrefix(url, "http://"):
		url = "https://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

// collapseSlashes 合并路径中的重复斜杠。开头的 "scheme://" 或 "//" (协议相对地址) 保留，
// 其后多余的斜杠去掉；单个前导斜杠 (根相对路径) 保留。查询串原样保留。
func collapseSlashes(url string) string {
	prefix := ""
	rest := url
	if i := strings.Index(url, "://"); i >= 0 && !strings.ContainsAny(url[:i], "/?") {
		prefix, rest = url[:i+3], url[i+3:]
	} else if strings.HasPrefix(url, "//") {
		prefix, rest = "//", url[2:]
	}
	if prefix != "" {
		rest = strings.TrimLeft(rest, "/")
	}
	query := ""
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest, query = rest[:i], rest[i:]
	}
	return prefix + dupSlashRe.ReplaceAllString(rest, "/") + query
}
