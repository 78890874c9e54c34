// rentalctl 是后台运维命令行：迁移表结构、创建管理员、手动执行定时任务和导出账单
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
