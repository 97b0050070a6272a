package sqlite

import (
	"database/sql"
	"errors"
	"log"
	"time"
)

const createBlobsTableSQL = `
CREATE TABLE IF NOT EXISTS Blobs (
    Key TEXT PRIMARY KEY,
    Value TEXT,
    UpdatedAt TIMESTAMP
);
`

// ErrNotFound 请求的键不存在
var ErrNotFound = errors.New("数据不存在")

func executeSQL(db *sql.DB, sqlStatement string) {
	_, err := db.Exec(sqlStatement)
	if err != nil {
		log.Fatalf("Error executing SQL statement: %s\n%s", sqlStatement, err)
	}
}

func InitializeDatabase(db *sql.DB) {
	executeSQL(db, createBlobsTableSQL)
}

// GetBlob 读取一个键的 JSON 文本
func GetBlob(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT Value FROM Blobs WHERE Key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// PutBlob 写入一个键的 JSON 文本，已存在则整体替换
func PutBlob(db *sql.DB, key, value string) error {
	_, err := db.Exec("INSERT OR REPLACE INTO Blobs (Key, Value, UpdatedAt) VALUES (?, ?, ?)",
		key, value, time.Now())
	return err
}

// DeleteBlob 删除一个键，键不存在不算错误
func DeleteBlob(db *sql.DB, key string) error {
	_, err := db.Exec("DELETE FROM Blobs WHERE Key = ?", key)
	return err
}

// ListBlobKeys 返回全部键，按字典序
func ListBlobKeys(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT Key FROM Blobs ORDER BY Key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
