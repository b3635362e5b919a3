package chain

import "os"

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}
