package adapters

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV はリニア PCM (16bit / mono) に RIFF ヘッダを付けて
// WAV コンテナとして返します。ヘッダは固定 44 バイトです。
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer

	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRate * pcmBytesPerSample * pcmChannels)
	blockAlign := uint16(pcmBytesPerSample * pcmChannels)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))               // fmt チャンク長
	binary.Write(&buf, binary.LittleEndian, uint16(1))                // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(pcmChannels))      // モノラル
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))       // サンプルレート
	binary.Write(&buf, binary.LittleEndian, byteRate)                 // バイトレート
	binary.Write(&buf, binary.LittleEndian, blockAlign)               // ブロック境界
	binary.Write(&buf, binary.LittleEndian, uint16(8*pcmBytesPerSample)) // ビット深度

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)

	return buf.Bytes()
}
