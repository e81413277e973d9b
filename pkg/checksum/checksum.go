// Package checksum 计算文件或文件中某个字节区间的内容摘要。
//
// 摘要为 MD5 的十六进制小写形式，与对象存储对单次 PUT 上传返回的 ETag 一致，
// 因此本地记录的分片校验和可以直接与远端报告的校验和比较。
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// BufferSize 是每次读取的字节数，用来限制内存占用。
const BufferSize = 8 * 1024

// Reader 以 BufferSize 为单位读取 r 直到 EOF 并返回摘要。
func Reader(r io.Reader) (string, error) {
	h := md5.New()
	buf := make([]byte, BufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File 计算整个文件的摘要。
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sum, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return sum, nil
}

// Range 计算文件中 [start, end) 区间的摘要，只读取该区间。
// 区间超出文件末尾时返回错误。
func Range(path string, start, end int64) (string, error) {
	if start < 0 || end < start {
		return "", fmt.Errorf("invalid byte range [%d:%d]", start, end)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	section := io.NewSectionReader(f, start, end-start)
	h := md5.New()
	buf := make([]byte, BufferSize)
	n, err := io.CopyBuffer(h, section, buf)
	if err != nil {
		return "", fmt.Errorf("checksum %s::[%d:%d]: %w", path, start, end, err)
	}
	if n != end-start {
		return "", fmt.Errorf("checksum %s::[%d:%d]: short read of %d bytes", path, start, end, n)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes 返回内存中数据的摘要。
func Bytes(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
