package main

import (
	"context"
	"fmt"
	"os"

	"github.com/BearBump/FleetSync/config"
	"github.com/BearBump/FleetSync/internal/bootstrap"
	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	// зависимости живут между вызовами в одном контейнере
	d, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		panic(err)
	}
	defer d.Close()

	h := &handler{r: d.Syncer, defaultOwners: cfg.FleetSync.Owners}
	lambda.Start(h.Handle)
}
