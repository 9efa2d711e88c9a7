package logging

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

const consoleTimeFormat = "15:04:05.000"

// ConsoleFormatter 输出适合终端阅读的单行日志：时间、状态/级别标签、消息与字段。
// 带 status 字段的条目以状态码作为标签并按状态着色。
type ConsoleFormatter struct {
	DisableColors bool
}

var (
	greyText   = color.New(color.FgHiBlack)
	statusTint = map[int]*color.Color{
		200: color.New(color.FgBlue),
		304: color.New(color.FgYellow),
		404: color.New(color.FgRed),
		500: color.New(color.FgRed),
	}
	levelTint = map[logrus.Level]*color.Color{
		logrus.DebugLevel: color.New(color.FgHiBlack),
		logrus.InfoLevel:  color.New(color.FgCyan),
		logrus.WarnLevel:  color.New(color.FgYellow),
		logrus.ErrorLevel: color.New(color.FgRed),
		logrus.FatalLevel: color.New(color.FgRed, color.Bold),
		logrus.PanicLevel: color.New(color.FgRed, color.Bold),
	}
)

// StatusColor 返回状态码对应的颜色，未登记的状态不着色。
func StatusColor(status int) *color.Color {
	if c, ok := statusTint[status]; ok {
		return c
	}
	return nil
}

// Format implements logrus.Formatter.
func (f *ConsoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(f.paint(greyText, entry.Time.Format(consoleTimeFormat)))
	buf.WriteByte(' ')
	buf.WriteString(f.label(entry))
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if key == "status" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		buf.WriteByte(' ')
		buf.WriteString(f.paint(greyText, key+"="))
		fmt.Fprint(&buf, entry.Data[key])
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (f *ConsoleFormatter) label(entry *logrus.Entry) string {
	if status, ok := entry.Data["status"].(int); ok {
		return f.paint(StatusColor(status), strconv.Itoa(status))
	}
	name := entry.Level.String()
	if len(name) > 3 {
		name = name[:3]
	}
	return f.paint(levelTint[entry.Level], strings.ToUpper(name))
}

func (f *ConsoleFormatter) paint(c *color.Color, s string) string {
	if c == nil || f.DisableColors {
		return s
	}
	return c.Sprint(s)
}
