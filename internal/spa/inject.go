// Package spa 负责 SPA 兜底路由：读取 index.html，注入运行时环境变量后返回。
package spa

import "bytes"

var (
	headClose = []byte("</head>")
	rootMount = []byte(`<div id="root">`)
)

// Inject 将 script 插入第一个 </head> 之前；没有 head 时插入 <div id="root"> 之前；
// 两者都不存在时原样返回文档。
func Inject(html []byte, script string) []byte {
	anchor := headClose
	idx := bytes.Index(html, anchor)
	if idx < 0 {
		anchor = rootMount
		idx = bytes.Index(html, anchor)
	}
	if idx < 0 {
		return html
	}

	out := make([]byte, 0, len(html)+len(script))
	out = append(out, html[:idx]...)
	out = append(out, script...)
	out = append(out, html[idx:]...)
	return out
}
