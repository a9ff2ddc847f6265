package cmd

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAudio_WritesDecodedChunksInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.pcm")

	require.NoError(t, appendAudio(path, base64.StdEncoding.EncodeToString([]byte("first"))))
	require.NoError(t, appendAudio(path, base64.StdEncoding.EncodeToString([]byte("-second"))))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first-second", string(data))
}

func TestAppendAudio_RejectsMalformedPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.pcm")

	err := appendAudio(path, "not base64!!!")
	require.Error(t, err)

	// nothing is written for a payload that fails to decode
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSaveAudio_NoTargetIsNoOp(t *testing.T) {
	prev := audioOutPath
	audioOutPath = ""
	defer func() { audioOutPath = prev }()

	// must not panic or create files when --save-audio is unset
	saveAudio(base64.StdEncoding.EncodeToString([]byte("audio")))
}
