package codeblock

import "fmt"

// sandboxShell is the standalone HTML document wrapped around extracted code
// for the isolated preview surface.
const sandboxShell = `<!DOCTYPE html>
<html dir="rtl" lang="ar">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<script src="https://cdn.tailwindcss.com"></script>
<style>
  body { font-family: 'Noto Kufi Arabic', sans-serif; margin: 0; padding: 0; background: #fff; font-size: 11px; }
  ::-webkit-scrollbar { width: 4px; }
  ::-webkit-scrollbar-thumb { background: #d4af37; }
  .km-preview-root { min-height: 100vh; }
</style>
</head>
<body>
<div class="km-preview-root">
%s
</div>
</body>
</html>
`

// SandboxDocument strips fence markers from code and wraps it in the
// standalone preview shell.
func SandboxDocument(code string) string {
	return fmt.Sprintf(sandboxShell, StripFences(code))
}
