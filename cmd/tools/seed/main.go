// Command seed fills a SQLite database with sample planner data for one user,
// so the assistant has something to brief about during local testing.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lifesync/backend/internal/config"
	"github.com/zhouzirui/lifesync/backend/internal/model/finance"
	"github.com/zhouzirui/lifesync/backend/internal/model/note"
	"github.com/zhouzirui/lifesync/backend/internal/model/task"
	"github.com/zhouzirui/lifesync/backend/internal/storage/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Warn("无法加载 .env，改用系统环境变量")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("配置加载失败")
	}

	path := flag.String("db", cfg.Store.SQLitePath, "SQLite 文件路径，默认使用 SQLITE_PATH")
	owner := flag.String("user", "demo-user", "写入数据的用户 ID")
	timeout := flag.Duration("timeout", 30*time.Second, "执行超时时间")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		logrus.Fatal("请通过 -db 或 SQLITE_PATH 指定数据库文件")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sqlite.Open(ctx, *path)
	if err != nil {
		logrus.WithError(err).Fatal("打开数据库失败")
	}
	defer db.Close()

	if err := seed(ctx, db, *owner, time.Now()); err != nil {
		logrus.WithError(err).Fatal("写入示例数据失败")
	}
	logrus.WithFields(logrus.Fields{"db": *path, "user": *owner}).Info("示例数据写入完成")
}

func seed(ctx context.Context, db *sqlite.DB, owner string, now time.Time) error {
	day := 24 * time.Hour
	tasks := []task.Task{
		{OwnerID: owner, Title: "Submit expense report", Start: now.Add(-3 * day), End: now.Add(-day)},
		{OwnerID: owner, Title: "Team standup", Start: now, End: now.Add(30 * time.Minute)},
		{OwnerID: owner, Title: "Dentist appointment", Start: now.Add(4 * day), End: now.Add(4*day + time.Hour)},
		{OwnerID: owner, Title: "Renew passport", Start: now.Add(-10 * day), End: now.Add(-9 * day), Completed: true},
	}
	for _, t := range tasks {
		if _, err := db.Tasks().SaveTask(ctx, t); err != nil {
			return err
		}
	}

	err := db.Finances().SaveFinance(ctx, finance.Finance{
		OwnerID: owner,
		Income:  4200,
		Budget:  3000,
		Expenses: []finance.Expense{
			{Name: "Rent", Amount: 1400, Budget: 1400, Category: "Housing"},
			{Name: "Groceries", Amount: 320, Budget: 400, Category: "Food"},
			{Name: "Dinner out", Amount: 95, Budget: 100, Category: "Food"},
			{Name: "Bus pass", Amount: 60, Budget: 60, Category: "Transport"},
		},
	})
	if err != nil {
		return err
	}

	notes := []note.Note{
		{OwnerID: owner, Title: "Trip ideas", Content: "Lisbon in spring.\nCheck flight prices in March.", UpdatedAt: now.Add(-2 * day)},
		{OwnerID: owner, Title: "Reading list", Content: "Finish the systems design book, then start the history one.", UpdatedAt: now.Add(-day)},
	}
	for _, n := range notes {
		if _, err := db.Notes().SaveNote(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
