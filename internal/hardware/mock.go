package hardware

import (
	"io"
	"sync"
)

// MockPort 内存串口（模拟模式和测试用）
// 读端由FeedLine注入遥测行，写端把指令留在内存里供断言。
type MockPort struct {
	mu       sync.Mutex
	reader   *io.PipeReader
	writer   *io.PipeWriter
	commands []string
	closed   bool
}

// NewMockPort 创建内存串口
func NewMockPort() *MockPort {
	r, w := io.Pipe()
	return &MockPort{reader: r, writer: w}
}

// FeedLine 模拟主控板上报一行遥测
func (p *MockPort) FeedLine(line string) {
	p.writer.Write([]byte(line + "\n"))
}

// Read 实现io.Reader
func (p *MockPort) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

// Write 实现io.Writer，记录发出的指令
func (p *MockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.commands = append(p.commands, string(b))
	return len(b), nil
}

// Close 实现io.Closer
func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.writer.Close()
	return p.reader.Close()
}

// Commands 返回已发出的指令
func (p *MockPort) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.commands))
	copy(out, p.commands)
	return out
}
